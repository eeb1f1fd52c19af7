package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/lensview/insight/internal/model"
)

var processFlags struct {
	contentID       string
	url             string
	contentType     string
	ownerID         string
	language        string
	title           string
	text            string
	force           bool
	skipAcquisition bool
}

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run one analysis and print the result",
	Long:  "Processes an existing content item by id, or ingests a new one from --url and --type first.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		contentID := processFlags.contentID
		if contentID == "" {
			if processFlags.url == "" || processFlags.contentType == "" {
				return eris.New("either --content-id or both --url and --type are required")
			}
			item := &model.ContentItem{
				ID:               uuid.New().String(),
				URL:              model.NormalizeURL(processFlags.url),
				Type:             model.ContentType(processFlags.contentType),
				OwnerID:          processFlags.ownerID,
				Title:            processFlags.title,
				RawText:          processFlags.text,
				AnalysisLanguage: model.NormalizeLanguage(processFlags.language),
			}
			if err := env.Store.CreateContentItem(ctx, item); err != nil {
				return eris.Wrap(err, "create content item")
			}
			contentID = item.ID
			fmt.Printf("created content item %s\n", contentID)
		}

		resp, err := env.Pipeline.Process(ctx, model.ProcessRequest{
			ContentID:       contentID,
			OwnerID:         processFlags.ownerID,
			Language:        processFlags.language,
			ForceRegenerate: processFlags.force,
			SkipAcquisition: processFlags.skipAcquisition,
		})
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return eris.Wrap(err, "encode result")
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	processCmd.Flags().StringVar(&processFlags.contentID, "content-id", "", "existing content item id")
	processCmd.Flags().StringVar(&processFlags.url, "url", "", "content URL to ingest")
	processCmd.Flags().StringVar(&processFlags.contentType, "type", "", "content type (video|article|podcast|document|social_post)")
	processCmd.Flags().StringVar(&processFlags.ownerID, "owner", "", "owner id")
	processCmd.Flags().StringVar(&processFlags.language, "language", "", "analysis language (BCP 47)")
	processCmd.Flags().StringVar(&processFlags.title, "title", "", "content title hint")
	processCmd.Flags().StringVar(&processFlags.text, "text", "", "document text (for uploaded documents)")
	processCmd.Flags().BoolVar(&processFlags.force, "force", false, "force regeneration")
	processCmd.Flags().BoolVar(&processFlags.skipAcquisition, "skip-acquisition", false, "use already-acquired text")
	rootCmd.AddCommand(processCmd)
}
