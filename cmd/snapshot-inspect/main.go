// Command snapshot-inspect lists or dumps the archive embedded in a packed
// executable, given the layout header fields the bundler recorded.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/opencontainers/go-digest"
	"github.com/spf13/afero"

	snapshot "github.com/oxmc/nexe/core"
)

type config struct {
	blobPath      string
	resourceStart int64
	resourceSize  int64
	contentStart  int64
	contentSize   int64
	digest        string
	dump          string
	showContent   bool
}

func parseFlags() config {
	var cfg config
	flag.StringVar(&cfg.blobPath, "exe", "", "packed executable to inspect (required)")
	flag.Int64Var(&cfg.resourceStart, "resource-start", 0, "archive offset in bytes")
	flag.Int64Var(&cfg.resourceSize, "resource-size", 0, "archive size in bytes (0 = to end of file)")
	flag.Int64Var(&cfg.contentStart, "content-start", 0, "entrypoint text offset in bytes")
	flag.Int64Var(&cfg.contentSize, "content-size", 0, "entrypoint text size in bytes")
	flag.StringVar(&cfg.digest, "digest", "", "expected resource digest (algo:hex)")
	flag.StringVar(&cfg.dump, "dump", "", "print one archive member instead of the listing")
	flag.BoolVar(&cfg.showContent, "content", false, "print the entrypoint text instead of the listing")
	flag.Parse()

	if cfg.blobPath == "" {
		flag.Usage()
		os.Exit(2)
	}
	return cfg
}

func main() {
	cfg := parseFlags()
	fsys := afero.NewOsFs()

	if cfg.resourceSize == 0 {
		info, err := fsys.Stat(cfg.blobPath)
		if err != nil {
			log.Fatal(err)
		}
		cfg.resourceSize = info.Size() - cfg.resourceStart
	}

	header := snapshot.Header{
		BlobPath:      cfg.blobPath,
		ResourceStart: cfg.resourceStart,
		ResourceSize:  cfg.resourceSize,
		ContentStart:  cfg.contentStart,
		ContentSize:   cfg.contentSize,
		Digest:        digest.Digest(cfg.digest),
	}

	if cfg.showContent {
		text, err := snapshot.ReadContent(fsys, header)
		if err != nil {
			log.Fatal(err)
		}
		os.Stdout.Write(text)
		return
	}

	buf, err := snapshot.ReadResource(fsys, header)
	if err != nil {
		log.Fatal(err)
	}
	archive, err := snapshot.OpenArchive(buf)
	if err != nil {
		log.Fatal(err)
	}

	if cfg.dump != "" {
		b, err := archive.ReadFile(cfg.dump)
		if err != nil {
			log.Fatal(err)
		}
		os.Stdout.Write(b)
		return
	}

	for entry := range archive.Entries() {
		if entry.Path == "." {
			continue
		}
		marker := " "
		if entry.Kind == snapshot.KindDir {
			marker = "d"
		}
		fmt.Printf("%s %10d  /snapshot/%s\n", marker, entry.Size, entry.Path)
	}
}
