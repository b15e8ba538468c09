package textract

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awstextract "github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"

	"github.com/yungbote/medscribe-backend/internal/platform/ctxutil"
	"github.com/yungbote/medscribe-backend/internal/platform/logger"
)

// BlockTypeLine is the block kind carrying one printed line of text.
const BlockTypeLine = "LINE"

// Block is one element of a text-detection response, normalized to the two
// fields the pipeline consumes.
type Block struct {
	BlockType string
	Text      string
}

// Client detects printed text in document images.
type Client interface {
	DetectDocumentText(ctx context.Context, image []byte) ([]Block, error)
}

type client struct {
	log *logger.Logger
	svc *awstextract.Client
}

func NewClient(ctx context.Context, log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	ctx = ctxutil.Default(ctx)

	region := strings.TrimSpace(os.Getenv("AWS_REGION"))
	if region == "" {
		region = "ap-southeast-2"
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	return &client{
		log: log.With("service", "TextractClient"),
		svc: awstextract.NewFromConfig(cfg),
	}, nil
}

func (c *client) DetectDocumentText(ctx context.Context, image []byte) ([]Block, error) {
	ctx = ctxutil.Default(ctx)
	if len(image) == 0 {
		return nil, fmt.Errorf("empty image")
	}

	out, err := c.svc.DetectDocumentText(ctx, &awstextract.DetectDocumentTextInput{
		Document: &types.Document{Bytes: image},
	})
	if err != nil {
		return nil, fmt.Errorf("detect document text: %w", err)
	}

	blocks := make([]Block, 0, len(out.Blocks))
	for _, b := range out.Blocks {
		blocks = append(blocks, Block{
			BlockType: string(b.BlockType),
			Text:      aws.ToString(b.Text),
		})
	}
	c.log.Debug("Detected document text", "blocks", len(blocks))
	return blocks, nil
}
