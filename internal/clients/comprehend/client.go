package comprehend

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	medical "github.com/aws/aws-sdk-go-v2/service/comprehendmedical"

	"github.com/yungbote/medscribe-backend/internal/domain"
	"github.com/yungbote/medscribe-backend/internal/platform/ctxutil"
	"github.com/yungbote/medscribe-backend/internal/platform/logger"
)

// Client detects clinical entities in plain text.
type Client interface {
	DetectEntities(ctx context.Context, text string) (*domain.EntityRecord, error)
}

type client struct {
	log *logger.Logger
	svc *medical.Client
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
		log: log.With("service", "ComprehendMedicalClient"),
		svc: medical.NewFromConfig(cfg),
	}, nil
}

// DetectEntities normalizes the provider response into the domain shape: only
// attributes carrying both a type and text survive.
func (c *client) DetectEntities(ctx context.Context, text string) (*domain.EntityRecord, error) {
	ctx = ctxutil.Default(ctx)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty text")
	}

	out, err := c.svc.DetectEntitiesV2(ctx, &medical.DetectEntitiesV2Input{
		Text: aws.String(text),
	})
	if err != nil {
		return nil, fmt.Errorf("detect entities: %w", err)
	}

	record := &domain.EntityRecord{Entities: make([]domain.Entity, 0, len(out.Entities))}
	for _, e := range out.Entities {
		entity := domain.Entity{
			Text:     aws.ToString(e.Text),
			Category: string(e.Category),
			Type:     string(e.Type),
			Score:    float64(aws.ToFloat32(e.Score)),
		}
		for _, a := range e.Attributes {
			attrText := aws.ToString(a.Text)
			attrType := string(a.Type)
			if attrType == "" || attrText == "" {
				continue
			}
			entity.Attributes = append(entity.Attributes, domain.EntityAttribute{
				Type: attrType,
				Text: attrText,
			})
		}
		record.Entities = append(record.Entities, entity)
	}
	c.log.Debug("Detected clinical entities", "entities", len(record.Entities))
	return record, nil
}
