package notion

import "strings"

// page is a database row.
type page struct {
	Object     string              `json:"object"`
	ID         string              `json:"id"`
	URL        string              `json:"url"`
	Archived   bool                `json:"archived"`
	Properties map[string]property `json:"properties"`
}

// queryResponse is one page of database query results.
type queryResponse struct {
	Results    []page `json:"results"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor"`
}

// property is a page property value. Only the field matching Type is set.
type property struct {
	Type     string     `json:"type,omitempty"`
	Title    []richText `json:"title,omitempty"`
	RichText []richText `json:"rich_text,omitempty"`
	Select   *option    `json:"select,omitempty"`
	Status   *option    `json:"status,omitempty"`
	People   []user     `json:"people,omitempty"`
	Date     *date      `json:"date,omitempty"`
	URL      *string    `json:"url,omitempty"`
	Relation []relation `json:"relation,omitempty"`
}

type richText struct {
	Type      string    `json:"type,omitempty"`
	Text      *textBody `json:"text,omitempty"`
	PlainText string    `json:"plain_text,omitempty"`
}

type textBody struct {
	Content string `json:"content"`
}

type option struct {
	Name string `json:"name"`
}

type user struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type date struct {
	Start string `json:"start"`
}

type relation struct {
	ID string `json:"id"`
}

func (p property) text() string {
	parts := p.Title
	if len(parts) == 0 {
		parts = p.RichText
	}
	var b strings.Builder
	for _, t := range parts {
		if t.PlainText != "" {
			b.WriteString(t.PlainText)
		} else if t.Text != nil {
			b.WriteString(t.Text.Content)
		}
	}
	return strings.TrimSpace(b.String())
}

// choice reads a select or status property.
func (p property) choice() string {
	if p.Select != nil {
		return p.Select.Name
	}
	if p.Status != nil {
		return p.Status.Name
	}
	return ""
}

func (p property) day() string {
	if p.Date == nil {
		return ""
	}
	// datetimes keep only the calendar date
	if len(p.Date.Start) > 10 {
		return p.Date.Start[:10]
	}
	return p.Date.Start
}

func (p property) link() string {
	if p.URL == nil {
		return ""
	}
	return *p.URL
}

// Property values for writes.

func titleValue(s string) property {
	return property{Title: []richText{{Type: "text", Text: &textBody{Content: s}}}}
}

func richTextValue(s string) property {
	return property{RichText: []richText{{Type: "text", Text: &textBody{Content: s}}}}
}

func selectValue(name string) property {
	return property{Select: &option{Name: name}}
}

func peopleValue(ids ...string) property {
	people := make([]user, 0, len(ids))
	for _, id := range ids {
		people = append(people, user{ID: id})
	}
	return property{People: people}
}

func dateValue(day string) property {
	return property{Date: &date{Start: day}}
}

func urlValue(u string) property {
	return property{URL: &u}
}

func relationValue(ids ...string) property {
	rel := make([]relation, 0, len(ids))
	for _, id := range ids {
		rel = append(rel, relation{ID: id})
	}
	return property{Relation: rel}
}
