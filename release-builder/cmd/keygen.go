package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"release-tools/go/pkg/release"
)

var (
	keygenOutDir       string
	privateKeyFileName string
	publicKeyFileName  string
	keygenBits         int
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generates an RSA key pair for signing release archives.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		privOutPath := filepath.Join(keygenOutDir, privateKeyFileName)
		pubOutPath := filepath.Join(keygenOutDir, publicKeyFileName)

		for _, p := range []string{privOutPath, pubOutPath} {
			if info, err := os.Stat(p); err == nil {
				log.Warn("keymgmt", "generate", "skip", "Key already exists, refusing to overwrite", "path", p, "created", info.ModTime().Format("2006-01-02 15:04:05"))
				return fmt.Errorf("%s already exists", p)
			}
		}

		log.Info("keymgmt", "generate", "progress", "Generating RSA key pair", "bits", keygenBits)
		privKeyBytes, pubKeyBytes, err := release.GenerateKeyPairPEM(keygenBits)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(keygenOutDir, 0755); err != nil {
			return err
		}
		if err := os.WriteFile(privOutPath, privKeyBytes, 0600); err != nil {
			log.Error("keymgmt", "write", "error", "Failed to write private key", "path", privOutPath, "error", err)
			return err
		}
		log.Info("keymgmt", "write", "success", "Private key saved", "path", privOutPath)

		if err := os.WriteFile(pubOutPath, pubKeyBytes, 0644); err != nil {
			log.Error("keymgmt", "write", "error", "Failed to write public key", "path", pubOutPath, "error", err)
			return err
		}
		log.Info("keymgmt", "write", "success", "Public key saved", "path", pubOutPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	keygenCmd.Flags().StringVarP(&keygenOutDir, "out-dir", "d", ".", "Directory to save the key pair.")
	keygenCmd.Flags().StringVar(&privateKeyFileName, "private-key-file", "release-private.key", "Filename for the private key.")
	keygenCmd.Flags().StringVar(&publicKeyFileName, "public-key-file", "release-public.key", "Filename for the public key.")
	keygenCmd.Flags().IntVar(&keygenBits, "bits", release.DefaultKeyBits, "RSA modulus size.")
}
