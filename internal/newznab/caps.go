// Package newznab renders the indexer search protocol surface: the caps
// capability document and the RSS result feed with vendor attributes.
package newznab

import (
	"encoding/xml"
	"fmt"
	"sort"

	"github.com/samber/lo"

	"fetcharr/internal/source"
)

// Category tree advertised by caps. Parent ids map to their display name and
// the subcategories they own.
var categoryTree = []struct {
	ID      string
	Name    string
	Subcats []struct{ ID, Name string }
}{
	{
		ID:   "7000",
		Name: "Books",
		Subcats: []struct{ ID, Name string }{
			{"7010", "Magazines"},
			{"7020", "eBook"},
			{"7030", "Comics"},
			{"7040", "Technical"},
			{"7050", "Other"},
		},
	},
	{
		ID:   "3000",
		Name: "Audio",
		Subcats: []struct{ ID, Name string }{
			{"3010", "MP3"},
			{"3020", "Audiobook"},
			{"3030", "Lossless"},
			{"3040", "Other"},
		},
	},
}

type capsDoc struct {
	XMLName    xml.Name       `xml:"caps"`
	Server     capsServer     `xml:"server"`
	Searching  capsSearching  `xml:"searching"`
	Categories capsCategories `xml:"categories"`
}

type capsServer struct {
	Version string `xml:"version,attr"`
	Title   string `xml:"title,attr"`
}

type capsSearching struct {
	Search      capsSearch `xml:"search"`
	BookSearch  capsSearch `xml:"book-search"`
	MusicSearch capsSearch `xml:"music-search"`
}

type capsSearch struct {
	Available       string `xml:"available,attr"`
	SupportedParams string `xml:"supportedParams,attr"`
}

type capsCategories struct {
	Categories []capsCategory `xml:"category"`
}

type capsCategory struct {
	ID          string       `xml:"id,attr"`
	Name        string       `xml:"name,attr"`
	Description string       `xml:"description,attr"`
	Subcats     []capsSubcat `xml:"subcat,omitempty"`
}

type capsSubcat struct {
	ID          string `xml:"id,attr"`
	Name        string `xml:"name,attr"`
	Description string `xml:"description,attr"`
}

// Caps builds the capabilities document from the union of the given sources'
// categories. Standard book categories are always advertised so clients can
// map the feed even when no source is loaded yet.
func Caps(serverTitle string, sources []source.Source) ([]byte, error) {
	supported := map[string]bool{}
	for _, s := range sources {
		for _, cat := range s.Categories() {
			if cat != "" {
				supported[cat] = true
			}
		}
	}
	if len(supported) == 0 {
		supported["7020"] = true
	}

	bookCats := lo.Map(categoryTree[0].Subcats, func(s struct{ ID, Name string }, _ int) string { return s.ID })
	musicCats := lo.Map(categoryTree[1].Subcats, func(s struct{ ID, Name string }, _ int) string { return s.ID })

	doc := capsDoc{
		Server: capsServer{Version: "0.1", Title: serverTitle},
		Searching: capsSearching{
			Search:      capsSearch{Available: "yes", SupportedParams: "q,cat"},
			BookSearch:  capsSearch{Available: yesNo(intersects(supported, bookCats)), SupportedParams: "q,cat,author,title"},
			MusicSearch: capsSearch{Available: yesNo(intersects(supported, musicCats)), SupportedParams: "q,cat,artist,album"},
		},
	}

	sorted := lo.Keys(supported)
	sort.Strings(sorted)

	parents := map[string]*capsCategory{}
	var order []string
	for _, catID := range sorted {
		parentID, subcatName, ok := lookupSubcat(catID)
		if !ok {
			// Unknown categories still appear, flat.
			doc.Categories.Categories = append(doc.Categories.Categories, capsCategory{
				ID:          catID,
				Name:        fmt.Sprintf("Category %s", catID),
				Description: fmt.Sprintf("Category %s", catID),
			})
			continue
		}
		parent, seen := parents[parentID]
		if !seen {
			parent = &capsCategory{
				ID:          parentID,
				Name:        parentName(parentID),
				Description: parentName(parentID),
			}
			parents[parentID] = parent
			order = append(order, parentID)
		}
		parent.Subcats = append(parent.Subcats, capsSubcat{ID: catID, Name: subcatName, Description: subcatName})
	}
	for _, id := range order {
		doc.Categories.Categories = append(doc.Categories.Categories, *parents[id])
	}

	body, err := xml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("newznab: encode caps: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

func lookupSubcat(catID string) (parentID, name string, ok bool) {
	for _, parent := range categoryTree {
		for _, sub := range parent.Subcats {
			if sub.ID == catID {
				return parent.ID, sub.Name, true
			}
		}
	}
	return "", "", false
}

func parentName(parentID string) string {
	for _, parent := range categoryTree {
		if parent.ID == parentID {
			return parent.Name
		}
	}
	return parentID
}

func intersects(supported map[string]bool, cats []string) bool {
	return lo.SomeBy(cats, func(c string) bool { return supported[c] })
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
