package scene

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/xml"
)

// rootAttrs holds the sizing attributes of the root <svg> element.
type rootAttrs struct {
	width, height       float64
	hasWidth, hasHeight bool
	viewBox             ViewBox
	hasViewBox          bool
	aspect              AspectRatio
}

// scanRoot lexes up to the end of the first start tag and collects its
// sizing attributes. It fails if the document has no root element or the
// root element is not <svg>.
func scanRoot(data []byte) (rootAttrs, error) {
	attrs := rootAttrs{aspect: DefaultAspectRatio}
	l := xml.NewLexer(parse.NewInputBytes(data))
	inRoot := false

	for {
		tt, _ := l.Next()
		switch tt {
		case xml.ErrorToken:
			if err := l.Err(); err != nil && err != io.EOF {
				return attrs, err
			}
			if inRoot {
				return attrs, fmt.Errorf("unexpected end of input in <svg> start tag")
			}
			return attrs, fmt.Errorf("no root element found")
		case xml.StartTagToken:
			if name := localName(string(l.Text())); name != "svg" {
				return attrs, fmt.Errorf("root element is <%s>, not <svg>", name)
			}
			inRoot = true
		case xml.AttributeToken:
			if !inRoot {
				continue
			}
			val := unquote(string(l.AttrVal()))
			switch localName(string(l.Text())) {
			case "width":
				attrs.width, attrs.hasWidth = parseLength(val)
			case "height":
				attrs.height, attrs.hasHeight = parseLength(val)
			case "viewBox":
				attrs.viewBox, attrs.hasViewBox = parseViewBox(val)
			case "preserveAspectRatio":
				attrs.aspect, _ = parseAspectRatio(val)
			}
		case xml.StartTagCloseToken, xml.StartTagCloseVoidToken:
			if inRoot {
				return attrs, nil
			}
		}
	}
}

// unitScale maps CSS absolute length units to pixels at 96 dpi.
var unitScale = map[string]float64{
	"":   1,
	"px": 1,
	"pt": 96.0 / 72.0,
	"pc": 16,
	"in": 96,
	"cm": 96 / 2.54,
	"mm": 96 / 25.4,
}

// parseLength parses an absolute SVG length. Relative units (%, em, ex)
// report false so the caller falls back to the viewBox.
func parseLength(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	i := len(s)
	for i > 0 && isUnitByte(s[i-1]) {
		i--
	}
	scale, ok := unitScale[strings.ToLower(s[i:])]
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s[:i]), 64)
	if err != nil {
		return 0, false
	}
	return v * scale, true
}

func isUnitByte(c byte) bool {
	return c == '%' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// parseViewBox parses "min-x min-y width height" separated by whitespace
// and/or commas.
func parseViewBox(s string) (ViewBox, bool) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if len(fields) != 4 {
		return ViewBox{}, false
	}
	var v [4]float64
	for i, f := range fields {
		n, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return ViewBox{}, false
		}
		v[i] = n
	}
	return ViewBox{X: v[0], Y: v[1], W: v[2], H: v[3]}, true
}

func localName(name string) string {
	if i := strings.LastIndexByte(name, ':'); i >= 0 {
		return name[i+1:]
	}
	return name
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
