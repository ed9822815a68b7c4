package feed

import (
	"bytes"
	"encoding/xml"
	"strings"
)

const GoogleNamespace = "http://base.google.com/ns/1.0"

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Run(channel Channel, items []OutputItem) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:g="` + GoogleNamespace + `">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", channel.Title, 4)
	g.writeElement(&buf, "link", channel.Link, 4)
	g.writeElement(&buf, "description", channel.Description, 4)

	for _, item := range items {
		g.writeItem(&buf, item)
	}

	buf.WriteString("  </channel>\n</rss>\n")

	return buf.Bytes(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, item OutputItem) {
	buf.WriteString("    <item>\n")
	for _, f := range item.fields {
		g.writeField(buf, f, 6)
	}
	buf.WriteString("    </item>\n")
}

func (g *Generator) writeField(buf *bytes.Buffer, f Field, indent int) {
	tag := "g:" + f.Name
	if f.Group == nil {
		g.writeElement(buf, tag, f.Value, indent)
		return
	}

	var inner bytes.Buffer
	for _, child := range f.Group {
		g.writeField(&inner, child, indent+2)
	}
	if inner.Len() == 0 {
		return
	}

	pad := strings.Repeat(" ", indent)
	buf.WriteString(pad + "<" + tag + ">\n")
	buf.Write(inner.Bytes())
	buf.WriteString(pad + "</" + tag + ">\n")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}
