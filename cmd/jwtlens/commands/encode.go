package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strrl/jwt-lens/internal/clip"
	"github.com/strrl/jwt-lens/internal/encoder"
)

var (
	encodePayload   string
	encodeSecret    string
	encodeAlgorithm string
	encodeExpiresIn int
	encodeCopy      bool
)

// NewEncodeCommand creates the encode command
func NewEncodeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Generate a signed token",
		Long: `Ask the service to sign a JSON payload with an HMAC secret.
The payload defaults to the configured template.`,
		Args: cobra.NoArgs,
		RunE: runEncode,
	}
	flags := cmd.Flags()
	flags.StringVar(&encodePayload, "payload", "", "JSON payload (default: configured template)")
	flags.StringVarP(&encodeSecret, "secret", "s", "", "HMAC secret")
	flags.StringVar(&encodeAlgorithm, "alg", "", "signing algorithm: HS256, HS384 or HS512")
	flags.IntVar(&encodeExpiresIn, "expires-in", 0, "expiration in seconds (0 for none)")
	flags.BoolVar(&encodeCopy, "copy", false, "copy the token to the clipboard")
	return cmd
}

func runEncode(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	w := encoder.New(newClient(), encoder.Form{
		Payload:   cfg.Encoder.PayloadTemplate,
		Algorithm: cfg.Encoder.Algorithm,
	}, logger)

	if encodePayload != "" {
		w.Form.Payload = encodePayload
	}
	if encodeAlgorithm != "" {
		w.Form.Algorithm = encodeAlgorithm
	}
	w.Form.Secret = encodeSecret
	w.Form.ExpiresIn = encodeExpiresIn

	token, err := w.Generate(commandContext(cmd))
	if err != nil {
		p := printer{w: out}
		p.NotifyError("Token not generated", w.ErrorText())
		return err
	}

	fmt.Fprintln(out, token)
	for _, warning := range w.Warnings() {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", warning)
	}

	if encodeCopy {
		if err := w.Copy(clip.Writer{}); err != nil {
			if errors.Is(err, clip.ErrUnavailable) {
				fmt.Fprintln(cmd.ErrOrStderr(), clip.FallbackMessage(err))
				return nil
			}
			return err
		}
		fmt.Fprintln(cmd.ErrOrStderr(), "copied to clipboard")
	}
	return nil
}
