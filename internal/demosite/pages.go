package demosite

import (
	"fmt"
	"strings"
)

// Version numbers every page has. Before carries the SEO defects, After
// is the repaired page.
const (
	Before = 1
	After  = 2
)

// PageVersion is one rendition of a page.
type PageVersion struct {
	Status int
	HTML   string
	// Delay holds the response back to trigger the slow load check.
	Delay bool
}

// PageDefinition holds all versions of a single page.
type PageDefinition struct {
	Path        string
	Description string
	Versions    map[int]PageVersion
}

// head describes the document head of a generated page. Empty fields are
// left out of the markup.
type head struct {
	title       string
	description string
	canonical   string
}

func lorem(n int) string {
	words := strings.Fields("search engines reward pages that answer a question clearly and link to related content on the same site")
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(words[i%len(words)])
	}
	return b.String()
}

func render(h head, h1 string, words int, links ...string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	if h.title != "" {
		fmt.Fprintf(&b, "    <title>%s</title>\n", h.title)
	}
	if h.description != "" {
		fmt.Fprintf(&b, "    <meta name=\"description\" content=\"%s\">\n", h.description)
	}
	if h.canonical != "" {
		fmt.Fprintf(&b, "    <link rel=\"canonical\" href=\"%s\">\n", h.canonical)
	}
	b.WriteString("</head>\n<body>\n")
	if h1 != "" {
		fmt.Fprintf(&b, "    <h1>%s</h1>\n", h1)
	}
	fmt.Fprintf(&b, "    <p>%s</p>\n", lorem(words))
	if len(links) > 0 {
		b.WriteString("    <nav>\n")
		for _, l := range links {
			fmt.Fprintf(&b, "        <a href=\"%s\">%s</a>\n", l, l)
		}
		b.WriteString("    </nav>\n")
	}
	b.WriteString("</body>\n</html>\n")
	return b.String()
}

func ok(html string) PageVersion { return PageVersion{Status: 200, HTML: html} }

func clean(path, title string) PageVersion {
	return ok(render(head{title: title, description: title + " at Demo Bakery", canonical: path}, title, 350, "/"))
}

// GetAllPages returns all demo page definitions.
func GetAllPages() []PageDefinition {
	return []PageDefinition{
		homePage(),
		{
			Path:        "/about",
			Description: "Missing title and meta description",
			Versions: map[int]PageVersion{
				Before: ok(render(head{canonical: "/about"}, "About us", 350, "/")),
				After:  clean("/about", "About us"),
			},
		},
		{
			Path:        "/services",
			Description: "No h1 heading and no canonical link",
			Versions: map[int]PageVersion{
				Before: ok(render(head{title: "Services", description: "Cakes, bread and catering"}, "", 350, "/")),
				After:  clean("/services", "Services"),
			},
		},
		{
			Path:        "/blog/first-post",
			Description: "Thin content",
			Versions: map[int]PageVersion{
				Before: ok(render(head{title: "First post", description: "Our first post", canonical: "/blog/first-post"}, "First post", 40, "/")),
				After:  clean("/blog/first-post", "First post"),
			},
		},
		{
			Path:        "/spring-offer",
			Description: "Linked page that returns 404",
			Versions: map[int]PageVersion{
				Before: {Status: 404, HTML: "<html><body><h1>Not found</h1></body></html>"},
				After:  clean("/spring-offer", "Spring offer"),
			},
		},
		{
			Path:        "/order",
			Description: "Server error",
			Versions: map[int]PageVersion{
				Before: {Status: 500, HTML: "<html><body>internal error</body></html>"},
				After:  clean("/order", "Order online"),
			},
		},
		{
			Path:        "/gallery",
			Description: "Slow response",
			Versions: map[int]PageVersion{
				Before: {Status: 200, HTML: clean("/gallery", "Gallery").HTML, Delay: true},
				After:  clean("/gallery", "Gallery"),
			},
		},
	}
}

func homePage() PageDefinition {
	links := []string{"/about", "/services", "/blog/first-post", "/spring-offer", "/order", "/gallery"}
	home := ok(render(head{title: "Demo Bakery", description: "Fresh bread every morning", canonical: "/"},
		"Demo Bakery", 350, links...))
	return PageDefinition{
		Path:        "/",
		Description: "Home page linking to every other page",
		Versions:    map[int]PageVersion{Before: home, After: home},
	}
}
