package main

import (
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/brodriguez/char_rnn"
	"github.com/brodriguez/char_rnn/resources"
)

func main() {
	dataSource := flag.String("data", "trump",
		fmt.Sprintf("named data source, one of: %s",
			strings.Join(resources.DataSourceNames(), ", ")))
	dataDir := flag.String("data-dir", ".",
		"directory containing the dataset files")
	weightsDir := flag.String("weights-dir", "Documents/Weights",
		"directory to write weight checkpoints into")
	epochs := flag.Int("epochs", 1000, "number of training epochs")
	weights := flag.String("weights", "",
		"weight checkpoint to import before training or generation")
	generateOnly := flag.Bool("generate", false,
		"skip training and emit one generated sequence")
	pruneBelow := flag.Int("prune-below", 0,
		"prune vocabulary symbols occurring fewer than this many times "+
			"(0 disables)")
	flag.Parse()

	log.Print("Starting Recurrent Net.")
	session, err := char_rnn.NewSession(*dataSource, char_rnn.SessionConfig{
		DataDir:    *dataDir,
		WeightsDir: *weightsDir,
		PruneBelow: *pruneBelow,
	})
	if err != nil {
		log.Fatalf("Error building session: %v", err)
	}
	if *weights != "" {
		if err := session.ImportWeights(*weights); err != nil {
			log.Fatalf("Error importing weights: %v", err)
		}
	}
	if *generateOnly {
		intString, charString := session.GenerateText()
		log.Printf("Full Generated Int String: %s", intString)
		log.Printf("Full Generated Char String: %s", charString)
		return
	}
	if err := session.Train(*epochs); err != nil {
		log.Fatalf("Training aborted: %v", err)
	}
	log.Print("Recurrent Net finished.")
}
