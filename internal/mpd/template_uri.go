package mpd

import (
	"fmt"
	"strconv"
	"strings"
)

// templateParams carries the substitution values for a $token$ expansion
// (§4.5, SegmentTemplate URI templates).
type templateParams struct {
	RepresentationID string
	Number           *int64
	Bandwidth        *int64
	Time             *int64
}

// expandTemplate substitutes $RepresentationID$, $Number$, $Bandwidth$, and
// $Time$ tokens (each optionally carrying a %0Nd width specifier and a
// format letter among d|i|u|o|x|X) in media. A token whose value is
// unavailable emits a warning and is left as the literal "$token$".
func expandTemplate(media string, params templateParams) (string, []string) {
	var warnings []string
	var out strings.Builder
	i := 0
	for i < len(media) {
		if media[i] != '$' {
			out.WriteByte(media[i])
			i++
			continue
		}
		// "$$" is a literal dollar sign.
		if i+1 < len(media) && media[i+1] == '$' {
			out.WriteByte('$')
			i += 2
			continue
		}
		end := strings.IndexByte(media[i+1:], '$')
		if end < 0 {
			// Unterminated token: copy remainder verbatim.
			out.WriteString(media[i:])
			break
		}
		token := media[i+1 : i+1+end]
		replacement, ok, warn := substituteToken(token, params)
		if warn != "" {
			warnings = append(warnings, warn)
		}
		if ok {
			out.WriteString(replacement)
		} else {
			out.WriteString("$" + token + "$")
		}
		i = i + 1 + end + 1
	}
	return out.String(), warnings
}

// substituteToken resolves one $Name%0Nd$-style token body into its
// replacement text.
func substituteToken(token string, params templateParams) (replacement string, ok bool, warning string) {
	name := token
	spec := ""
	if idx := strings.IndexByte(token, '%'); idx >= 0 {
		name = token[:idx]
		spec = token[idx:]
	}

	switch name {
	case "RepresentationID":
		if spec != "" {
			return "", false, "RepresentationID substitution does not accept a width specifier"
		}
		if params.RepresentationID == "" {
			return "", false, "missing RepresentationID for template substitution"
		}
		return params.RepresentationID, true, ""
	case "Number":
		if params.Number == nil {
			return "", false, "missing Number for template substitution"
		}
		return formatWithSpec(*params.Number, spec), true, ""
	case "Bandwidth":
		if params.Bandwidth == nil {
			return "", false, "missing Bandwidth for template substitution"
		}
		return formatWithSpec(*params.Bandwidth, spec), true, ""
	case "Time":
		if params.Time == nil {
			return "", false, "missing Time for template substitution"
		}
		return formatWithSpec(*params.Time, spec), true, ""
	default:
		return "", false, fmt.Sprintf("unrecognized template token $%s$", token)
	}
}

// formatWithSpec applies an optional "%0Nd"-style width/format specifier
// (format letter among d|i|u|o|x|X) to v, defaulting to plain decimal.
func formatWithSpec(v int64, spec string) string {
	if spec == "" {
		return strconv.FormatInt(v, 10)
	}
	// spec looks like "%05d", "%x", "%08X", etc.
	body := strings.TrimPrefix(spec, "%")
	if body == "" {
		return strconv.FormatInt(v, 10)
	}
	formatLetter := body[len(body)-1]
	widthPart := body[:len(body)-1]

	var verb string
	switch formatLetter {
	case 'd', 'i', 'u':
		verb = "d"
	case 'o':
		verb = "o"
	case 'x':
		verb = "x"
	case 'X':
		verb = "X"
	default:
		return strconv.FormatInt(v, 10)
	}

	width := 0
	zeroPad := false
	if widthPart != "" {
		if strings.HasPrefix(widthPart, "0") {
			zeroPad = true
		}
		if w, err := strconv.Atoi(strings.TrimPrefix(widthPart, "0")); err == nil {
			width = w
		} else if widthPart == "0" {
			width = 0
		}
	}

	layout := "%"
	if zeroPad && width > 0 {
		layout += fmt.Sprintf("0%d", width)
	} else if width > 0 {
		layout += fmt.Sprintf("%d", width)
	}
	layout += verb
	return fmt.Sprintf(layout, v)
}
