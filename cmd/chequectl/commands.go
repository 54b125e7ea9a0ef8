package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"chequeverify/internal/credential"
	"chequeverify/pkg/domain"
)

func mintTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mint-token",
		Short: "Mint an inter-tier credential for manual api tier calls",
		Long: `Mint a short-lived bearer credential signed with the shared inter-tier
secret. The secret is read from --secret or INTER_TIER_SECRET.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, _ := cmd.Flags().GetString("secret")
			issuer, _ := cmd.Flags().GetString("issuer")
			audience, _ := cmd.Flags().GetString("audience")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			if secret == "" {
				secret = os.Getenv("INTER_TIER_SECRET")
			}
			iss, err := credential.NewIssuer(credential.Config{
				Secret:   secret,
				Issuer:   issuer,
				Audience: audience,
				TTL:      ttl,
			})
			if err != nil {
				return err
			}
			token, err := iss.Mint(time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().String("secret", "", "Shared inter-tier secret (default $INTER_TIER_SECRET)")
	cmd.Flags().String("issuer", os.Getenv("INTER_TIER_ISSUER"), "Issuer claim")
	cmd.Flags().String("audience", os.Getenv("INTER_TIER_AUDIENCE"), "Audience claim")
	cmd.Flags().Duration("ttl", credential.DefaultTTL, "Token lifetime")
	return cmd
}

func checkNumberCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-number [number]",
		Short: "Validate a cheque number the way both tiers do",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			number, err := domain.ParseChequeNumber(args[0])
			if err != nil {
				return fmt.Errorf("invalid cheque number: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "valid: %s\n", number)
			return nil
		},
	}
}

func verifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Submit a verification to a running backend and print the outcome",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			baseURL, _ := cmd.Flags().GetString("url")
			number, _ := cmd.Flags().GetString("number")
			amount, _ := cmd.Flags().GetString("amount")
			date, _ := cmd.Flags().GetString("date")
			timeout, _ := cmd.Flags().GetDuration("timeout")

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			status, body, err := postVerify(ctx, baseURL, number, amount, date)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "HTTP %d\n", status)
			var pretty bytes.Buffer
			if json.Indent(&pretty, body, "", "  ") == nil {
				body = pretty.Bytes()
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(body))
			if status != http.StatusOK {
				return fmt.Errorf("verification not successful (HTTP %d)", status)
			}
			return nil
		},
	}

	cmd.Flags().String("url", "http://localhost:8080", "Backend base URL")
	cmd.Flags().StringP("number", "n", "", "Cheque number")
	cmd.Flags().StringP("amount", "a", "", "Applied amount")
	cmd.Flags().StringP("date", "d", "", "Payment issue date (YYYY-MM-DD)")
	cmd.Flags().Duration("timeout", 30*time.Second, "Request timeout")
	_ = cmd.MarkFlagRequired("number")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func postVerify(ctx context.Context, baseURL, number, amount, date string) (int, []byte, error) {
	payload, err := json.Marshal(map[string]string{
		"chequeNumber":     number,
		"appliedAmount":    amount,
		"paymentIssueDate": date,
	})
	if err != nil {
		return 0, nil, err
	}
	endpoint := strings.TrimRight(baseURL, "/") + "/api/cheque/verify"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("call backend: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}
