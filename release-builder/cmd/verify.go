package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"release-tools/go/pkg/release"
)

var (
	verifyPublicKeyFile string
	verifyExtractDir    string
)

var verifyCmd = &cobra.Command{
	Use:   "verify <archive>",
	Short: "Verifies a release archive against its checksum and, with --public-key, its signature.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		archive := args[0]
		log.Info("archive", "verify", "progress", "Verifying release archive", "path", archive)

		if err := release.VerifyChecksum(archive); err != nil {
			log.Error("archive", "verify", "failure", "Checksum verification failed", "error", err)
			return err
		}
		log.Info("archive", "verify", "success", "Checksum matches")

		if verifyPublicKeyFile != "" {
			pubKey, err := release.LoadPublicKey(verifyPublicKeyFile)
			if err != nil {
				return err
			}
			if err := release.VerifySignature(archive, pubKey); err != nil {
				log.Error("signing", "verify", "failure", "Signature verification failed", "error", err)
				return err
			}
			log.Info("signing", "verify", "success", "Signature is valid", "key", verifyPublicKeyFile)
		}

		if verifyExtractDir != "" {
			files, err := release.Unpack(archive, verifyExtractDir)
			if err != nil {
				return fmt.Errorf("extract %s: %w", archive, err)
			}
			log.Info("archive", "copy", "success", "Archive extracted", "dir", verifyExtractDir, "files", len(files))
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s: OK\n", archive)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().StringVar(&verifyPublicKeyFile, "public-key", "", "Public key to check the archive signature with.")
	verifyCmd.Flags().StringVar(&verifyExtractDir, "extract", "", "Also extract the verified archive into this directory.")
}
