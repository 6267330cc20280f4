package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/gcbaptista/librarian/config"
	internalErrors "github.com/gcbaptista/librarian/internal/errors"
	"github.com/gcbaptista/librarian/internal/isbn"
	"github.com/gcbaptista/librarian/internal/library"
	"github.com/gcbaptista/librarian/internal/logger"
	"github.com/gcbaptista/librarian/model"
)

const usage = `Librarian - a personal document library

Usage: librarian [global options] <command> [arguments]

Commands:
  add <file>        Copy a file into the library (-title, -author, -keyword or -isbn)
  find <pattern>    Search titles, authors and keywords
  list              List all documents
  show <doc>        Show one document
  open <doc>        Print where a document is stored
  remove <doc>      Remove a document
  resolve <prefix>  Print the identity of the document whose hash starts with prefix
  update <doc>      Edit metadata (-title, -author, -keyword, -add)
  lookup <isbn>     Fetch title and authors from Open Library

Documents are addressed by a hash prefix or by identity as #<id>.

Global options:
`

// stringList collects a repeatable flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ", ") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

type cli struct {
	cfg    *config.Config
	stdout io.Writer
	stderr io.Writer
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("librarian", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() {
		fmt.Fprint(stderr, usage)
		global.PrintDefaults()
	}
	var (
		configPath = global.String("config", "", "Path to a YAML configuration file")
		root       = global.String("root", "", "Library directory (overrides configuration and LBRPATH)")
		isbnURL    = global.String("isbn-url", "", "Base URL of the Open Library API")
		verbose    = global.Bool("v", false, "Log library activity to stderr")
	)
	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		global.Usage()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if *root != "" {
		cfg.Library.Root = *root
	}
	if *isbnURL != "" {
		cfg.ISBN.BaseURL = *isbnURL
	}
	if !*verbose {
		cfg.Logging.Level = "error"
	}

	c := &cli{cfg: cfg, stdout: stdout, stderr: stderr}
	cmd, rest := global.Arg(0), global.Args()[1:]

	var cmdErr error
	switch cmd {
	case "add":
		cmdErr = c.add(rest)
	case "find":
		cmdErr = c.find(rest)
	case "list":
		cmdErr = c.list(rest)
	case "show":
		cmdErr = c.show(rest)
	case "open":
		cmdErr = c.open(rest)
	case "remove":
		cmdErr = c.remove(rest)
	case "resolve":
		cmdErr = c.resolve(rest)
	case "update":
		cmdErr = c.update(rest)
	case "lookup":
		cmdErr = c.lookup(rest)
	default:
		fmt.Fprintf(stderr, "Unknown command %q\n\n", cmd)
		global.Usage()
		return 2
	}

	if cmdErr != nil {
		if errors.Is(cmdErr, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", cmdErr)
		return 1
	}
	return 0
}

func (c *cli) openLibrary() (*library.Library, error) {
	return library.Open(library.Options{
		Root:         c.cfg.Library.Root,
		SnapshotPath: c.cfg.Library.SnapshotPath(),
		GramSize:     c.cfg.Library.GramSize,
		SearchLimit:  c.cfg.Library.SearchLimit,
		Logger:       logger.New(c.stderr, c.cfg.Logging.Level, c.cfg.Logging.Format),
	})
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newFlagSet(c *cli, name, synopsis string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	fs.Usage = func() {
		fmt.Fprintf(c.stderr, "Usage: librarian %s %s\n", name, synopsis)
		fs.PrintDefaults()
	}
	return fs
}

// parseArgs parses flags and requires exactly one positional argument.
// Flags may follow the positional argument.
func parseArgs(fs *flag.FlagSet, args []string) (string, error) {
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return "", fmt.Errorf("%s: missing argument", fs.Name())
	}
	positional := fs.Arg(0)
	if err := fs.Parse(fs.Args()[1:]); err != nil {
		return "", err
	}
	if fs.NArg() > 0 {
		return "", fmt.Errorf("%s: unexpected arguments %v", fs.Name(), fs.Args())
	}
	return positional, nil
}

// lookupDocument resolves "#<id>" or a hash prefix.
func lookupDocument(lib *library.Library, ref string) (model.DocID, error) {
	if idText, ok := strings.CutPrefix(ref, "#"); ok {
		return model.ParseDocID(idText)
	}
	return lib.Resolve(ref)
}

type entryOutput struct {
	ID       model.DocID    `json:"id"`
	Score    float64        `json:"score,omitempty"`
	Document model.Document `json:"document"`
}

func (c *cli) add(args []string) error {
	fs := newFlagSet(c, "add", "<file> (-title T [-author A]... | -isbn N) [-keyword K]...")
	var authors, keywords stringList
	title := fs.String("title", "", "Document title")
	isbnNumber := fs.String("isbn", "", "Fetch title and authors from Open Library")
	fs.Var(&authors, "author", "Author (repeatable)")
	fs.Var(&keywords, "keyword", "Keyword (repeatable)")
	path, err := parseArgs(fs, args)
	if err != nil {
		return err
	}

	switch {
	case *isbnNumber != "" && *title != "":
		return errors.New("add: -title and -isbn are mutually exclusive")
	case *isbnNumber != "":
		res, err := c.fetchISBN(*isbnNumber)
		if err != nil {
			return err
		}
		*title = res.Title
		authors = res.Authors
	case *title == "":
		return errors.New("add: -title or -isbn is required")
	}

	lib, err := c.openLibrary()
	if err != nil {
		return err
	}
	doc := model.Document{Title: *title, Authors: authors, Keywords: keywords}
	id, err := lib.InsertFile(context.Background(), doc, path)
	var persist *internalErrors.PersistError
	if errors.As(err, &persist) {
		fmt.Fprintf(c.stderr, "Warning: document #%s was added but the index could not be saved\n", id)
		return err
	}
	if err != nil {
		return err
	}

	stored, err := lib.Get(id)
	if err != nil {
		return err
	}
	return c.printJSON(entryOutput{ID: id, Document: stored})
}

func (c *cli) find(args []string) error {
	fs := newFlagSet(c, "find", "<pattern> [-limit N]")
	limit := fs.Int("limit", 0, "Maximum number of results (default from configuration)")
	pattern, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	lib, err := c.openLibrary()
	if err != nil {
		return err
	}

	hits := lib.SearchHits(pattern, *limit)
	out := make([]entryOutput, 0, len(hits))
	for _, h := range hits {
		doc, err := lib.Get(h.ID)
		if err != nil {
			return err
		}
		out = append(out, entryOutput{ID: h.ID, Score: h.Score, Document: doc})
	}
	return c.printJSON(out)
}

func (c *cli) list(args []string) error {
	fs := newFlagSet(c, "list", "")
	if err := fs.Parse(args); err != nil {
		return err
	}
	lib, err := c.openLibrary()
	if err != nil {
		return err
	}
	return c.printJSON(lib.List())
}

func (c *cli) show(args []string) error {
	fs := newFlagSet(c, "show", "<doc> [-removed]")
	removed := fs.Bool("removed", false, "Address removed documents by #<id>")
	ref, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	lib, err := c.openLibrary()
	if err != nil {
		return err
	}
	id, err := lookupDocument(lib, ref)
	if err != nil {
		return err
	}

	var doc model.Document
	if *removed {
		doc, err = lib.Record(id)
	} else {
		doc, err = lib.Get(id)
	}
	if err != nil {
		return err
	}
	return c.printJSON(entryOutput{ID: id, Document: doc})
}

func (c *cli) open(args []string) error {
	fs := newFlagSet(c, "open", "<doc>")
	ref, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	lib, err := c.openLibrary()
	if err != nil {
		return err
	}
	id, err := lookupDocument(lib, ref)
	if err != nil {
		return err
	}
	location, err := lib.Path(id)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, location)
	return nil
}

func (c *cli) remove(args []string) error {
	fs := newFlagSet(c, "remove", "<doc>")
	ref, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	lib, err := c.openLibrary()
	if err != nil {
		return err
	}
	id, err := lookupDocument(lib, ref)
	if err != nil {
		return err
	}
	if err := lib.Remove(id); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "Removed document #%s\n", id)
	return nil
}

func (c *cli) resolve(args []string) error {
	fs := newFlagSet(c, "resolve", "<prefix>")
	prefix, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	lib, err := c.openLibrary()
	if err != nil {
		return err
	}
	id, err := lib.Resolve(prefix)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, id)
	return nil
}

func (c *cli) update(args []string) error {
	fs := newFlagSet(c, "update", "<doc> [-title T] [-author A]... [-keyword K]... [-add]")
	var authors, keywords stringList
	title := fs.String("title", "", "New title")
	add := fs.Bool("add", false, "Append authors and keywords instead of replacing them")
	fs.Var(&authors, "author", "Author (repeatable)")
	fs.Var(&keywords, "keyword", "Keyword (repeatable)")
	ref, err := parseArgs(fs, args)
	if err != nil {
		return err
	}

	lib, err := c.openLibrary()
	if err != nil {
		return err
	}
	id, err := lookupDocument(lib, ref)
	if err != nil {
		return err
	}
	current, err := lib.Get(id)
	if err != nil {
		return err
	}

	meta := current.Metadata()
	if *title != "" {
		meta.Title = *title
	}
	if *add {
		meta.Authors = appendMissing(meta.Authors, authors)
		meta.Keywords = appendMissing(meta.Keywords, keywords)
	} else {
		if len(authors) > 0 {
			meta.Authors = authors
		}
		if len(keywords) > 0 {
			meta.Keywords = keywords
		}
	}

	doc, err := lib.Update(id, meta)
	if err != nil {
		return err
	}
	return c.printJSON(entryOutput{ID: id, Document: doc})
}

func appendMissing(list, values []string) []string {
	for _, v := range values {
		if !slices.Contains(list, v) {
			list = append(list, v)
		}
	}
	return list
}

func (c *cli) lookup(args []string) error {
	fs := newFlagSet(c, "lookup", "<isbn>")
	number, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	res, err := c.fetchISBN(number)
	if err != nil {
		return err
	}
	return c.printJSON(res)
}

// fetchISBN succeeds only when Open Library knows the book.
func (c *cli) fetchISBN(number string) (isbn.Result, error) {
	timeout := c.cfg.ISBN.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	res, err := isbn.NewClient(c.cfg.ISBN.BaseURL, timeout).Lookup(ctx, number)
	if err != nil {
		return isbn.Result{}, err
	}
	switch res.Status {
	case isbn.StatusNotFound:
		return res, fmt.Errorf("ISBN %s not found at Open Library", res.ISBN)
	case isbn.StatusMalformed:
		return res, fmt.Errorf("unexpected Open Library answer for ISBN %s: %s", res.ISBN, res.Reason)
	}
	return res, nil
}
