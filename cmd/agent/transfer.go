package main

import (
	"fmt"

	"github.com/oriys/iotagent/internal/filetransfer"
	"github.com/spf13/cobra"
)

var (
	ftBucket string
	ftRegion string
	ftPrefix string
)

func addTransferFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&ftBucket, "bucket", "", "object storage bucket (required)")
	cmd.Flags().StringVar(&ftRegion, "region", "us-east-1", "object storage region")
	cmd.Flags().StringVar(&ftPrefix, "prefix", "", "object key prefix")
	cmd.MarkFlagRequired("bucket")
}

func uploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload NAME LOCAL_PATH",
		Short: "upload a local file to the device's object storage bucket under NAME",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			backend, err := filetransfer.New(ctx, filetransfer.Config{Bucket: ftBucket, Region: ftRegion, Prefix: ftPrefix})
			if err != nil {
				return err
			}
			if err := backend.Upload(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("uploaded %s -> %s\n", args[1], args[0])
			return nil
		},
	}
	addTransferFlags(cmd)
	return cmd
}

func downloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download NAME LOCAL_PATH",
		Short: "download an object named NAME to LOCAL_PATH",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			backend, err := filetransfer.New(ctx, filetransfer.Config{Bucket: ftBucket, Region: ftRegion, Prefix: ftPrefix})
			if err != nil {
				return err
			}
			if err := backend.Download(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("downloaded %s -> %s\n", args[0], args[1])
			return nil
		},
	}
	addTransferFlags(cmd)
	return cmd
}
