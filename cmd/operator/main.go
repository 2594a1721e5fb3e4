// Package main is the entrypoint for the kafka-operator.
//
// The operator reconciles KafkaCluster resources into the ZooKeeper and Kafka
// workloads, certificates, services and storage that run them.
//
// For usage information, run:
//
//	kafka-operator --help
package main

import (
	"fmt"
	"os"

	"github.com/imamik/kafka-operator/cmd/operator/commands"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
