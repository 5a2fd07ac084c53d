// ksef-offline manages invoices issued while KSeF is unreachable: generates
// verification codes and records, reconciles them once the service is back
// and extends deadlines from maintenance window data.
package main

import (
	"os"

	"github.com/alapierre/go-ksef-offline/ksef"
	"github.com/alapierre/go-ksef-offline/ksef/store"
	"github.com/alapierre/go-ksef-offline/ksef/util"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		logrus.Fatal(err)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ksef-offline",
		Short:         "Offline KSeF invoice verification codes and reconciliation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// .env is optional, real config comes from the environment
			_ = godotenv.Load()

			if util.DebugEnabled() {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
	}

	cmd.AddCommand(generateCmd(), reconcileCmd(), extendCmd())
	return cmd
}

func environment() (ksef.Environment, error) {
	var env ksef.Environment
	err := env.UnmarshalText([]byte(util.GetEnvOrDefault("KSEF_ENV", "test")))
	return env, err
}

func openStore() (*store.Store, error) {
	path := util.GetEnvOrDefault("KSEF_OFFLINE_DB", "ksef-offline.db")
	return store.Open(path)
}

func init() {
	if _, ok := os.LookupEnv("KSEF_LOG_JSON"); ok {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
}
