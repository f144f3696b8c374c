// Package testutil provides fakes and fixtures shared by package tests.
package testutil

import "github.com/roach88/bibsearch/internal/library"

// Corpus returns a small library used across search tests. Entry ids are
// e1..e6 and titles exercise the love/hate/war queries.
func Corpus() []*library.Entry {
	return []*library.Entry{
		library.NewEntry("e1", "article").WithKey("Tolstoy1869").
			Set("title", "War and Peace").
			Set("author", "Leo Tolstoy").
			Set("year", "1869").
			Set("keywords", "novel, russia"),
		library.NewEntry("e2", "book").WithKey("Shakespeare1597").
			Set("title", "Love and Hate in Verona").
			Set("author", "William Shakespeare").
			Set("year", "1597"),
		library.NewEntry("e3", "book").WithKey("Hemingway1929").
			Set("title", "A Farewell to Arms").
			Set("abstract", "Love during the war").
			Set("author", "Ernest Hemingway").
			Set("year", "1929"),
		library.NewEntry("e4", "article").WithKey("Doe2020").
			Set("title", "Lovelace and the Engine").
			Set("journal", "Computing History").
			Set("year", "2020").
			Set("keywords", "computing"),
		library.NewEntry("e5", "inproceedings").WithKey("Roe2021").
			Set("title", "Deep Learning for Citations").
			Set("booktitle", "Proc. of Things").
			Set("year", "2021"),
		library.NewEntry("e6", "misc").WithKey("Anon").
			Set("note", `Path C:\papers\hate.pdf`).
			Set("title", "Untitled"),
	}
}
