package main

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/rust-qt/ritual/feed"
)

func TestEncodeFeed(t *testing.T) {
	doc := &feed.Document{
		Library: "geo",
		Classes: []feed.Class{{Name: "Point", Scope: "geo", Include: "geo/point.h"}},
	}

	data, err := encodeFeed(doc, "feed.json")
	if err != nil {
		t.Fatalf("encodeFeed json: %v", err)
	}
	var back feed.Document
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, data)
	}
	if back.Library != "geo" || len(back.Classes) != 1 {
		t.Errorf("decoded %+v", back)
	}

	data, err = encodeFeed(doc, "feed.cue")
	if err != nil {
		t.Fatalf("encodeFeed cue: %v", err)
	}
	if !strings.Contains(string(data), `library: "geo"`) {
		t.Errorf("CUE output:\n%s", data)
	}
}
