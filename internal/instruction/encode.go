package instruction

import (
	"fmt"
	"strconv"
	"strings"
)

// Encode renders the canonical text line for instr:
//
//	<type><number> <P><value>... ; <comment>
//
// The same instruction always encodes to the same bytes.
func Encode(instr Instruction) string {
	var b strings.Builder
	b.WriteString(instr.Code())
	for _, p := range instr.Params() {
		b.WriteByte(' ')
		b.WriteString(p.Letter)
		if p.Value != nil {
			b.WriteString(FormatValue(p.Value))
		}
	}
	if c := instr.Comment(); c != "" {
		b.WriteString(" ; ")
		b.WriteString(c)
	}
	return b.String()
}

// FormatValue renders a parameter value. Numbers use the shortest exact
// decimal form, numeric strings pass through, other strings are quoted.
func FormatValue(v any) string {
	switch n := v.(type) {
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32)
	case int:
		return strconv.Itoa(n)
	case int64:
		return strconv.FormatInt(n, 10)
	case int32:
		return strconv.FormatInt(int64(n), 10)
	case uint8:
		return strconv.FormatUint(uint64(n), 10)
	case bool:
		if n {
			return "1"
		}
		return "0"
	case string:
		if _, err := strconv.ParseFloat(n, 64); err == nil {
			return n
		}
		return `"` + strings.ReplaceAll(n, `"`, `""`) + `"`
	default:
		return fmt.Sprint(v)
	}
}

// ParseLine splits a text line such as "G1 X10 F300 ; approach" into its
// code, parameters and comment.
func ParseLine(line string) (string, []Param, string, error) {
	body, comment, _ := strings.Cut(line, ";")
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return "", nil, "", fmt.Errorf("empty line")
	}
	codeType, number, err := ParseCode(fields[0])
	if err != nil {
		return "", nil, "", err
	}
	params := make([]Param, 0, len(fields)-1)
	for _, word := range fields[1:] {
		p, err := ParseParam(word)
		if err != nil {
			return "", nil, "", err
		}
		params = append(params, p)
	}
	return codeKey(codeType, number), params, strings.TrimSpace(comment), nil
}
