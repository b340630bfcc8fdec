package resources

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path"
	"sort"

	"github.com/dustin/go-humanize"
)

// DataSourceError reports an unknown data-source identifier or a dataset
// file that could not be read or parsed. Both are unrecoverable: callers
// are expected to log the error and terminate rather than proceed with an
// undefined vocabulary.
type DataSourceError struct {
	Source string
	Err    error
}

func (e *DataSourceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("unknown data source `%s`", e.Source)
	}
	return fmt.Sprintf("data source `%s`: %v", e.Source, e.Err)
}

func (e *DataSourceError) Unwrap() error {
	return e.Err
}

// dataSources maps a named data-source identifier to the dataset file it
// is backed by, relative to the data directory.
var dataSources = map[string]string{
	"trump": "Documents/trump_tweets_2017.json",
	"alice": "Documents/alice.json",
}

// DataSourceNames returns the registered data-source identifiers in sorted
// order, for CLI help and error messages.
func DataSourceNames() []string {
	names := make([]string, 0, len(dataSources))
	for name := range dataSources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveDataSource
// Maps a named data-source identifier to its dataset file path under
// dataDir. Unknown identifiers are a configuration error.
func ResolveDataSource(name string, dataDir string) (string, error) {
	rel, ok := dataSources[name]
	if !ok {
		return "", &DataSourceError{Source: name}
	}
	return path.Join(dataDir, rel), nil
}

// datasetRecord is one entry of the dataset file: a JSON array of objects
// each carrying a `text` field.
type datasetRecord struct {
	Text string `json:"text"`
}

// LoadCorpus
// Reads the dataset behind the named data source and returns its raw text
// records in file order. The corpus is immutable after load; every failure
// mode is wrapped in DataSourceError.
func LoadCorpus(name string, dataDir string) ([]string, error) {
	filePath, err := ResolveDataSource(name, dataDir)
	if err != nil {
		return nil, err
	}
	fileBytes, err := os.ReadFile(filePath)
	if err != nil {
		return nil, &DataSourceError{Source: name, Err: err}
	}
	var entries []datasetRecord
	if err := json.Unmarshal(fileBytes, &entries); err != nil {
		return nil, &DataSourceError{Source: name, Err: err}
	}
	records := make([]string, len(entries))
	for idx := range entries {
		records[idx] = entries[idx].Text
	}
	log.Printf("Loaded %s records (%s) from `%s`.",
		humanize.Comma(int64(len(records))),
		humanize.Bytes(uint64(len(fileBytes))), filePath)
	return records, nil
}
