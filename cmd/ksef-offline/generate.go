package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/alapierre/go-ksef-offline/ksef/certs"
	"github.com/alapierre/go-ksef-offline/ksef/keys"
	"github.com/alapierre/go-ksef-offline/ksef/offline"
	"github.com/alapierre/go-ksef-offline/ksef/sign"
	"github.com/spf13/cobra"
)

func generateCmd() *cobra.Command {
	var (
		xmlPath  string
		modeName string
		certPath string
		keyPath  string
		outDir   string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate an offline invoice record with KOD I and KOD II",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := environment()
			if err != nil {
				return err
			}

			mode, err := offline.ParseMode(modeName)
			if err != nil {
				return err
			}

			xml, err := os.ReadFile(xmlPath)
			if err != nil {
				return fmt.Errorf("read invoice XML: %w", err)
			}

			cert, err := certs.LoadCertificateFromFile(certPath)
			if err != nil {
				return err
			}

			// password only required for encrypted keys
			pass := []byte(os.Getenv("KSEF_CERT_PASS"))
			signer, err := keys.LoadSignerFromFile(keyPath, pass)
			if err != nil {
				return err
			}

			cred, err := sign.NewCredential(cert, signer, sign.Offline)
			if err != nil {
				return err
			}

			st, err := openStore()
			if err != nil {
				return err
			}

			gen := offline.NewGenerator(env, st)
			record, err := gen.Generate(cmd.Context(), offline.GenerateInput{
				XML:        xml,
				Mode:       mode,
				Credential: cred,
			})
			if err != nil {
				return err
			}

			fmt.Printf("record:    %s\n", record.ID)
			fmt.Printf("invoice:   %s\n", record.InvoiceNumber)
			fmt.Printf("submit by: %s\n", record.SubmitBy)
			fmt.Printf("KOD I:     %s\n", record.Codes.KodI.URL)
			if record.Codes.KodII != nil {
				fmt.Printf("KOD II:    %s\n", record.Codes.KodII.URL)
			}

			if outDir != "" {
				if err := writeImages(record, outDir); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&xmlPath, "xml", "", "path to the FA invoice XML (required)")
	cmd.Flags().StringVar(&modeName, "mode", "offline24", "offline mode: offline24, system-unavailable, emergency, total-failure")
	cmd.Flags().StringVar(&certPath, "cert", "", "path to the offline certificate PEM (required)")
	cmd.Flags().StringVar(&keyPath, "key", "", "path to the PKCS#8 private key PEM (required)")
	cmd.Flags().StringVar(&outDir, "out", "", "directory to write QR code PNG files")
	_ = cmd.MarkFlagRequired("xml")
	_ = cmd.MarkFlagRequired("cert")
	_ = cmd.MarkFlagRequired("key")

	return cmd
}

func writeImages(record *offline.Record, outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	write := func(name string, data []byte) error {
		return os.WriteFile(filepath.Join(outDir, name), data, 0o644)
	}

	if err := write("kod1.png", record.Codes.KodI.Image.Data); err != nil {
		return err
	}
	if record.Codes.KodII != nil {
		return write("kod2.png", record.Codes.KodII.Image.Data)
	}
	return nil
}
