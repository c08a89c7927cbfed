package instruction

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/KevinKickass/OpenGCodeCore/internal/state"
)

// ipPatterns are tried in order; the first match wins.
var ipPatterns = []*regexp.Regexp{
	regexp.MustCompile(`IP address = (\d{1,3}(?:\.\d{1,3}){3})`),
	regexp.MustCompile(`IP address (\d{1,3}(?:\.\d{1,3}){3})`),
	regexp.MustCompile(`IP: (\d{1,3}(?:\.\d{1,3}){3})`),
	regexp.MustCompile(`\b(\d{1,3}(?:\.\d{1,3}){3})\b`),
}

// ExtractIP returns the first IPv4 address found in response.
func ExtractIP(response string) (string, bool) {
	for _, re := range ipPatterns {
		if m := re.FindStringSubmatch(response); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// ExtractNetwork reads the address and link state from a network status
// response.
func ExtractNetwork(response string) (state.NetworkInfo, bool) {
	var info state.NetworkInfo
	ip, ok := ExtractIP(response)
	if ok {
		info.IP = ip
	}
	lower := strings.ToLower(response)
	switch {
	case strings.Contains(lower, "disconnected"), strings.Contains(lower, "disabled"):
		info.State = "disconnected"
	case strings.Contains(lower, "connected"), strings.Contains(lower, "enabled"), ok:
		info.State = "connected"
	}
	return info, info.IP != "" || info.State != ""
}

var axisPatterns = func() map[string]*regexp.Regexp {
	out := make(map[string]*regexp.Regexp)
	for _, axis := range []string{"X", "Y", "Z", "E", "U", "V", "W"} {
		out[axis] = regexp.MustCompile(`(?:^|[\s,])` + axis + `:\s*(-?\d+(?:\.\d+)?)`)
	}
	return out
}()

// ExtractPosition scans each axis independently. Axes absent from the
// response are omitted.
func ExtractPosition(response string) (map[string]float64, bool) {
	out := make(map[string]float64)
	for axis, re := range axisPatterns {
		m := re.FindStringSubmatch(response)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		out[axis] = v
	}
	return out, len(out) > 0
}

// Temperatures is one temperature report.
type Temperatures struct {
	Tools   map[int]state.Reading
	Bed     *state.Reading
	Chamber *state.Reading
}

// AsMap renders the report as {"tool0": {"current": .., "target": ..}, "bed": ..}.
func (t Temperatures) AsMap() map[string]map[string]float64 {
	out := make(map[string]map[string]float64)
	for n, r := range t.Tools {
		out[fmt.Sprintf("tool%d", n)] = readingMap(r)
	}
	if t.Bed != nil {
		out["bed"] = readingMap(*t.Bed)
	}
	if t.Chamber != nil {
		out["chamber"] = readingMap(*t.Chamber)
	}
	return out
}

// Heaters returns the AsMap keys, sorted.
func (t Temperatures) Heaters() []string {
	m := t.AsMap()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func readingMap(r state.Reading) map[string]float64 {
	return map[string]float64{"current": r.Current, "target": r.Target}
}

const tempPair = `\s*(-?\d+(?:\.\d+)?)\s*/\s*(-?\d+(?:\.\d+)?)`

var (
	toolTempPattern    = regexp.MustCompile(`(?:^|\s)T(\d*):` + tempPair)
	bedTempPattern     = regexp.MustCompile(`(?:^|\s)B:` + tempPair)
	chamberTempPattern = regexp.MustCompile(`(?:^|\s)C:` + tempPair)
)

// ExtractTemperatures reads every T<n>: cur/target pair and the B: and C:
// pairs. A bare T: is tool 0.
func ExtractTemperatures(response string) (Temperatures, bool) {
	var t Temperatures
	for _, m := range toolTempPattern.FindAllStringSubmatch(response, -1) {
		tool := 0
		if m[1] != "" {
			tool, _ = strconv.Atoi(m[1])
		}
		r, ok := parseReading(m[2], m[3])
		if !ok {
			continue
		}
		if t.Tools == nil {
			t.Tools = make(map[int]state.Reading)
		}
		t.Tools[tool] = r
	}
	if m := bedTempPattern.FindStringSubmatch(response); m != nil {
		if r, ok := parseReading(m[1], m[2]); ok {
			t.Bed = &r
		}
	}
	if m := chamberTempPattern.FindStringSubmatch(response); m != nil {
		if r, ok := parseReading(m[1], m[2]); ok {
			t.Chamber = &r
		}
	}
	return t, len(t.Tools) > 0 || t.Bed != nil || t.Chamber != nil
}

func parseReading(cur, target string) (state.Reading, bool) {
	c, err := strconv.ParseFloat(cur, 64)
	if err != nil {
		return state.Reading{}, false
	}
	tg, err := strconv.ParseFloat(target, 64)
	if err != nil {
		return state.Reading{}, false
	}
	return state.Reading{Current: c, Target: tg}, true
}

var keyPattern = regexp.MustCompile(`(?:^|\s)([A-Za-z][A-Za-z0-9_]*):`)

// ExtractKeyValues reads KEY:value tokens from a single line. A value runs
// until the next key.
func ExtractKeyValues(line string) map[string]string {
	idx := keyPattern.FindAllStringSubmatchIndex(line, -1)
	if len(idx) == 0 {
		return nil
	}
	out := make(map[string]string, len(idx))
	for i, m := range idx {
		key := line[m[2]:m[3]]
		end := len(line)
		if i+1 < len(idx) {
			end = idx[i+1][0]
		}
		out[key] = strings.TrimSpace(line[m[1]:end])
	}
	return out
}

// LastJSONObject returns the last line of response that parses as a JSON object.
func LastJSONObject(response string) (map[string]any, bool) {
	lines := strings.Split(response, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, "{") || !strings.HasSuffix(line, "}") {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(line), &obj); err == nil {
			return obj, true
		}
	}
	return nil, false
}

// ExtractFirmware reads firmware facts from either a JSON object line or
// KEY:value tokens.
func ExtractFirmware(response string) (state.FirmwareInfo, bool) {
	fields := make(map[string]string)
	if obj, ok := LastJSONObject(response); ok {
		for k, v := range obj {
			fields[k] = fmt.Sprint(v)
		}
	} else {
		for _, line := range strings.Split(response, "\n") {
			for k, v := range ExtractKeyValues(line) {
				fields[k] = v
			}
		}
	}
	if len(fields) == 0 {
		return state.FirmwareInfo{}, false
	}

	var info state.FirmwareInfo
	for k, v := range fields {
		switch normalizeKey(k) {
		case "firmwarename", "name":
			info.Name = v
		case "firmwareversion", "version":
			info.Version = v
		case "machinetype", "machine", "boardname":
			info.Machine = v
		case "protocolversion", "protocol":
			info.Protocol = v
		default:
			if info.Extra == nil {
				info.Extra = make(map[string]string)
			}
			info.Extra[k] = v
		}
	}
	return info, true
}

func normalizeKey(k string) string {
	return strings.ToLower(strings.ReplaceAll(k, "_", ""))
}

// reportsTemperatures, reportsPosition, reportsFirmware and reportsNetwork
// give instructions the matching extractor capability.
type reportsTemperatures struct{}

func (reportsTemperatures) ExtractTemperatures(response string) (Temperatures, bool) {
	return ExtractTemperatures(response)
}

type reportsPosition struct{}

func (reportsPosition) ExtractPosition(response string) (map[string]float64, bool) {
	return ExtractPosition(response)
}

type reportsFirmware struct{}

func (reportsFirmware) ExtractFirmware(response string) (state.FirmwareInfo, bool) {
	return ExtractFirmware(response)
}

type reportsNetwork struct{}

func (reportsNetwork) ExtractNetwork(response string) (state.NetworkInfo, bool) {
	return ExtractNetwork(response)
}

// Facts runs every extractor instr declares over response.
func Facts(instr Instruction, response string) state.Facts {
	var f state.Facts
	if e, ok := instr.(PositionExtractor); ok {
		if pos, ok := e.ExtractPosition(response); ok {
			f.Position = pos
		}
	}
	if e, ok := instr.(TemperatureExtractor); ok {
		if t, ok := e.ExtractTemperatures(response); ok {
			f.Tools = t.Tools
			f.Bed = t.Bed
			f.Chamber = t.Chamber
		}
	}
	if e, ok := instr.(NetworkExtractor); ok {
		if n, ok := e.ExtractNetwork(response); ok {
			f.Network = &n
		}
	}
	if e, ok := instr.(FirmwareExtractor); ok {
		if fw, ok := e.ExtractFirmware(response); ok {
			f.Firmware = &fw
		}
	}
	return f
}
