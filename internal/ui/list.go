package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/chartx/internal/models"
)

var _ list.Item = captureItem{}

// captureItem summarizes one tick's records to implement [list.Item].
type captureItem struct {
	key     string
	count   int
	leader  string
	artists string
}

func (i captureItem) FilterValue() string { return i.key }
func (i captureItem) Title() string       { return fmt.Sprintf("%s • %d tracks", i.key, i.count) }
func (i captureItem) Description() string {
	if i.leader == "" {
		return "no records"
	}
	return fmt.Sprintf("#1 %s - %s", i.leader, i.artists)
}

// captureItems groups records by capture key in the order the ticks ran.
func captureItems(records []models.ChartRecord) []list.Item {
	var items []list.Item
	index := make(map[string]int)

	for _, r := range records {
		key := r.CaptureKey()
		at, ok := index[key]
		if !ok {
			at = len(items)
			index[key] = at
			items = append(items, captureItem{key: key})
		}

		item := items[at].(captureItem)
		item.count++
		if r.Rank == 1 {
			item.leader = r.Title
			item.artists = r.Artists
		}
		items[at] = item
	}
	return items
}
