package aodp

import (
	"regexp"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{[a-z_]+\}`)

// dummyParams stand in for auxiliary placeholders the caller did not supply,
// so the fixed part of the URL is measured at a representative length.
var dummyParams = map[string]string{
	"locations":  "City",
	"time_scale": "24",
}

// renderURL fills an endpoint template. Placeholders missing from params get a
// dummy value.
func renderURL(baseURL, template, items string, params map[string]string) string {
	path := placeholderRe.ReplaceAllStringFunc(template, func(ph string) string {
		key := ph[1 : len(ph)-1]
		if key == "items" {
			return items
		}
		if v, ok := params[key]; ok {
			return v
		}
		if v, ok := dummyParams[key]; ok {
			return v
		}
		return "x"
	})
	return baseURL + path
}

// SplitBatches partitions items into order-preserving batches whose rendered
// URL (items comma-joined) stays within maxURLLength. An item too long to fit
// on its own still gets a batch of its own. No batch is ever empty.
func SplitBatches(items []string, maxURLLength int, baseURL, template string, params map[string]string) [][]string {
	if len(items) == 0 {
		return nil
	}
	available := maxURLLength - len(renderURL(baseURL, template, "", params))

	var batches [][]string
	var cur []string
	curLen := 0
	for _, item := range items {
		add := len(item)
		if len(cur) > 0 {
			add++ // comma
		}
		if len(cur) > 0 && curLen+add > available {
			batches = append(batches, cur)
			cur = nil
			curLen = 0
			add = len(item)
		}
		cur = append(cur, item)
		curLen += add
	}
	if len(cur) > 0 {
		batches = append(batches, cur)
	}
	return batches
}

func joinItems(batch []string) string {
	return strings.Join(batch, ",")
}
