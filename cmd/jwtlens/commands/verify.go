package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strrl/jwt-lens/internal/analysis"
	"github.com/strrl/jwt-lens/internal/classify"
)

var verifySecret string

// NewVerifyCommand creates the verify command
func NewVerifyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <token>",
		Short: "Check a token signature",
		Long: `Check a token signature against a secret.
Without --secret the token is only decoded and reported as unverified.`,
		Args: cobra.ExactArgs(1),
		RunE: runVerify,
	}
	cmd.Flags().StringVarP(&verifySecret, "secret", "s", "", "HMAC secret")
	return cmd
}

func runVerify(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	var recorder analysis.Recorder
	if j := openJournal(); j != nil {
		recorder = j
	}
	v := analysis.NewVerifier(newClient(), printer{w: out}, recorder, logger)

	notice, res := v.Verify(commandContext(cmd), args[0], verifySecret)
	if res != nil && res.Success {
		if res.Algorithm != "" {
			fmt.Fprintf(out, "Algorithm: %s\n", res.Algorithm)
		}
		if res.Header != nil {
			printJSON(out, "Header", res.Header)
		}
		if res.Payload != nil {
			printJSON(out, "Payload", res.Payload)
		}
		for _, w := range res.Warnings {
			fmt.Fprintf(out, "  ! %s\n", w)
		}
	}

	if notice.Severity == classify.SeverityError {
		return errors.New(notice.Title)
	}
	return nil
}
