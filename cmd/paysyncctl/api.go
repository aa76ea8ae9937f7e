package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"paysync/internal/models"
	"paysync/internal/pkg/httpclient"
)

type apiOptions struct {
	server string
	token  string
}

func (o *apiOptions) call(ctx context.Context, body map[string]interface{}) (*models.APIResponse, error) {
	if o.token == "" {
		return nil, errors.New("an API token is required (--token or API_KEY)")
	}
	client := httpclient.New(time.Minute).
		WithBaseURL(o.server).
		WithHeader("Token", o.token)

	var resp models.APIResponse
	if err := client.PostJSON(ctx, "/api/payments", body, &resp); err != nil {
		return nil, err
	}
	if !resp.Status {
		return &resp, fmt.Errorf("request rejected: %s", resp.Msg)
	}
	return &resp, nil
}

func orderCmd(action string, opts *apiOptions) *cobra.Command {
	return &cobra.Command{
		Use:   action + " [order-id]",
		Short: "Run " + action + " on an order's payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil || id == 0 {
				return fmt.Errorf("invalid order id %q", args[0])
			}
			resp, err := opts.call(cmd.Context(), map[string]interface{}{
				"actions":  action,
				"order_id": id,
			})
			if err != nil {
				return err
			}
			obj, _ := resp.Obj.(map[string]interface{})
			fmt.Fprintf(cmd.OutOrStdout(), "order %d: state=%v transaction=%v\n", id, obj["payment_state"], obj["transaction_id"])
			return nil
		},
	}
}

func reconcileCmd(opts *apiOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Poll the gateway for orders waiting on a final state",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			resp, err := opts.call(cmd.Context(), map[string]interface{}{
				"actions": "reconcile",
				"limit":   limit,
			})
			if err != nil {
				return err
			}
			obj, _ := resp.Obj.(map[string]interface{})
			fmt.Fprintf(cmd.OutOrStdout(), "checked=%v updated=%v skipped=%v failed=%v\n",
				obj["checked"], obj["updated"], obj["skipped"], obj["failed"])
			return nil
		},
	}
	cmd.Flags().IntP("limit", "n", 50, "Maximum orders to check")
	return cmd
}
