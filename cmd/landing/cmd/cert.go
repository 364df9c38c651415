package cmd

import (
	"fmt"
	"time"

	tlsutil "github.com/psantana5/landing/pkg/tls"
	"github.com/spf13/cobra"
)

var (
	certFile  string
	keyFile   string
	certName  string
	certHosts []string
	certDays  int
)

var certCmd = &cobra.Command{
	Use:   "cert",
	Short: "Manage TLS certificates",
}

var certGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a self-signed certificate for local HTTPS",
	RunE: func(cmd *cobra.Command, args []string) error {
		if certDays <= 0 {
			return fmt.Errorf("--days must be positive")
		}
		err := tlsutil.GenerateSelfSignedCert(certFile, keyFile, tlsutil.CertOptions{
			CommonName: certName,
			Hosts:      certHosts,
			ValidFor:   time.Duration(certDays) * 24 * time.Hour,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Certificate written to %s\nKey written to %s\n", certFile, keyFile)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(certCmd)
	certCmd.AddCommand(certGenerateCmd)

	certGenerateCmd.Flags().StringVar(&certFile, "cert", "certs/landing.crt", "certificate output path")
	certGenerateCmd.Flags().StringVar(&keyFile, "key", "certs/landing.key", "private key output path")
	certGenerateCmd.Flags().StringVar(&certName, "name", "localhost", "certificate common name")
	certGenerateCmd.Flags().StringSliceVar(&certHosts, "host", nil, "extra DNS names or IP addresses")
	certGenerateCmd.Flags().IntVar(&certDays, "days", 365, "validity in days")
}
