package model

import (
	"net/url"
	"time"
)

// Node is a content record exported by the host CMS. It satisfies
// rss.Content and rss.RichContent.
type Node struct {
	Key       int64     `json:"id" yaml:"id"`
	Title     string    `json:"name" yaml:"name"`
	Location  string    `json:"url" yaml:"url"`
	Created   time.Time `json:"createDate" yaml:"createDate"`
	ParentKey int64     `json:"parentId,omitempty" yaml:"parentId,omitempty"`
	Teaser    string    `json:"description,omitempty" yaml:"description,omitempty"`
	HTML      string    `json:"content,omitempty" yaml:"content,omitempty"`
}

func (n *Node) Name() string          { return n.Title }
func (n *Node) ID() int64             { return n.Key }
func (n *Node) CreateDate() time.Time { return n.Created }
func (n *Node) URLWithDomain() string { return n.Location }
func (n *Node) Summary() string       { return n.Teaser }
func (n *Node) Body() string          { return n.HTML }

// ResolveURL makes the node location absolute against base. Locations that
// are already absolute, or fail to parse, are kept.
func (n *Node) ResolveURL(base *url.URL) {
	if base == nil || n.Location == "" {
		return
	}
	ref, err := url.Parse(n.Location)
	if err != nil || ref.IsAbs() {
		return
	}
	n.Location = base.ResolveReference(ref).String()
}
