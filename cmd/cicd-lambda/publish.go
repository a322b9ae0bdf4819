package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/lex00/cicd-lambda-go/internal/publish"
)

func newPublishCmd() *cobra.Command {
	var (
		opts         publish.ClientOptions
		bucket       string
		keyPrefix    string
		outputFormat string
		timeout      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "publish <config>",
		Short: "Upload the template and buildspec to S3",
		Long: `Publish builds the template and uploads it, together with the buildspec,
to an S3 bucket so that large templates can be deployed with a TemplateURL.

Credentials come from the standard AWS chain unless --access-key and
--secret-key are given.

Examples:
    cicd-lambda publish pipeline.yaml --bucket my-templates
    cicd-lambda publish pipeline.yaml --bucket my-templates --key-prefix dev
    cicd-lambda publish pipeline.yaml --bucket test --endpoint http://localhost:9000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			built, err := buildPipeline(args[0])
			if err != nil {
				return err
			}

			templateBody, err := encodeTemplate(built.template, outputFormat)
			if err != nil {
				return err
			}
			specBody, err := built.pipeline.Buildspec().ToYAML()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			client, err := publish.NewS3Client(ctx, opts)
			if err != nil {
				return err
			}

			p := &publish.Publisher{
				Client:    client,
				Bucket:    bucket,
				KeyPrefix: keyPrefix,
				Logger:    slog.Default(),
			}
			uris, err := p.Publish(ctx,
				publish.Artifact{Name: "template." + outputFormat, Body: templateBody},
				publish.Artifact{Name: "buildspec.yml", Body: specBody},
			)
			for _, uri := range uris {
				fmt.Fprintln(cmd.OutOrStdout(), uri)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&bucket, "bucket", "", "Destination S3 bucket (required)")
	cmd.Flags().StringVar(&keyPrefix, "key-prefix", "", "Key prefix for uploaded objects")
	cmd.Flags().StringVarP(&outputFormat, "format", "f", "json", "Template format: json or yaml")
	cmd.Flags().StringVar(&opts.Region, "region", "", "AWS region (default: AWS_REGION or us-east-1)")
	cmd.Flags().StringVar(&opts.Profile, "profile", "", "Shared config profile")
	cmd.Flags().StringVar(&opts.Endpoint, "endpoint", "", "Custom S3 endpoint, enables path-style addressing")
	cmd.Flags().StringVar(&opts.AccessKey, "access-key", "", "Static access key id")
	cmd.Flags().StringVar(&opts.SecretKey, "secret-key", "", "Static secret access key")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Upload timeout")
	_ = cmd.MarkFlagRequired("bucket")

	return cmd
}
