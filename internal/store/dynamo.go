package store

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"

	"github.com/icco/riffloop/internal/annotation"
)

// DynamoConfig locates the sessions table.
type DynamoConfig struct {
	Table    string
	Region   string
	Endpoint string
}

// DynamoStore keeps sessions in a DynamoDB table keyed by "PK".
type DynamoStore struct {
	client dynamodbiface.DynamoDBAPI
	table  string
	now    func() time.Time
}

// NewDynamoStore connects to DynamoDB. An empty endpoint uses the AWS default
// for the region; set one for DynamoDB Local.
func NewDynamoStore(cfg DynamoConfig) (*DynamoStore, error) {
	awsCfg := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("dynamodb session: %w", err)
	}
	return NewDynamoStoreWithClient(dynamodb.New(sess), cfg.Table), nil
}

// NewDynamoStoreWithClient wraps an existing client.
func NewDynamoStoreWithClient(client dynamodbiface.DynamoDBAPI, table string) *DynamoStore {
	return &DynamoStore{client: client, table: table, now: time.Now}
}

// item is the table row. Annotation maps are decoded generically so rows
// written in the legacy shape still load.
type item struct {
	PK            string                 `dynamodbav:"PK"`
	SourceRef     string                 `dynamodbav:"SourceRef"`
	Title         string                 `dynamodbav:"Title,omitempty"`
	Notes         string                 `dynamodbav:"Notes,omitempty"`
	BPM           *int                   `dynamodbav:"BPM,omitempty"`
	BeatsPerBar   *int                   `dynamodbav:"BeatsPerBar,omitempty"`
	OffsetSeconds *float64               `dynamodbav:"OffsetSeconds,omitempty"`
	ClickVolume   *float64               `dynamodbav:"ClickVolume,omitempty"`
	Chords        map[string]interface{} `dynamodbav:"Chords,omitempty"`
	Tabs          map[string]interface{} `dynamodbav:"Tabs,omitempty"`
	UpdatedAt     time.Time              `dynamodbav:"UpdatedAt"`
}

func toItem(id string, rec Record) item {
	it := item{
		PK:            id,
		SourceRef:     rec.SourceRef,
		Title:         rec.Title,
		Notes:         rec.Notes,
		BPM:           rec.BPM,
		BeatsPerBar:   rec.BeatsPerBar,
		OffsetSeconds: rec.OffsetSeconds,
		ClickVolume:   rec.ClickVolume,
		UpdatedAt:     rec.UpdatedAt,
	}
	if len(rec.Chords) > 0 {
		it.Chords = map[string]interface{}{}
		for k, v := range rec.Chords {
			it.Chords[k] = v
		}
	}
	if len(rec.Tabs) > 0 {
		it.Tabs = map[string]interface{}{}
		for k, v := range rec.Tabs {
			it.Tabs[k] = v
		}
	}
	return it
}

func (it item) record() (Record, error) {
	chords, err := annotation.ChordsFromRaw(it.Chords)
	if err != nil {
		return Record{}, err
	}
	tabs, err := annotation.TabsFromRaw(it.Tabs)
	if err != nil {
		return Record{}, err
	}
	return Record{
		SourceRef:     it.SourceRef,
		Title:         it.Title,
		Notes:         it.Notes,
		BPM:           it.BPM,
		BeatsPerBar:   it.BeatsPerBar,
		OffsetSeconds: it.OffsetSeconds,
		ClickVolume:   it.ClickVolume,
		Chords:        chords,
		Tabs:          tabs,
		UpdatedAt:     it.UpdatedAt,
	}, nil
}

func key(id string) map[string]*dynamodb.AttributeValue {
	return map[string]*dynamodb.AttributeValue{
		"PK": {S: aws.String(id)},
	}
}

func (s *DynamoStore) Load(ctx context.Context, id string) (Record, error) {
	if err := checkID(id); err != nil {
		return Record{}, err
	}
	out, err := s.client.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       key(id),
	})
	if err != nil {
		return Record{}, fmt.Errorf("get session %s: %w", id, err)
	}
	if len(out.Item) == 0 {
		return Record{}, notFound(id)
	}
	var it item
	if err := dynamodbattribute.UnmarshalMap(out.Item, &it); err != nil {
		return Record{}, fmt.Errorf("decode session %s: %w", id, err)
	}
	rec, err := it.record()
	if err != nil {
		return Record{}, fmt.Errorf("decode session %s: %w", id, err)
	}
	return rec, nil
}

func (s *DynamoStore) Save(ctx context.Context, id string, rec Record) error {
	if err := checkID(id); err != nil {
		return err
	}
	rec.UpdatedAt = s.now().UTC()
	av, err := dynamodbattribute.MarshalMap(toItem(id, rec))
	if err != nil {
		return fmt.Errorf("encode session %s: %w", id, err)
	}
	_, err = s.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("put session %s: %w", id, err)
	}
	return nil
}

// List scans the table. Only the summary attributes are read.
func (s *DynamoStore) List(ctx context.Context) ([]Summary, error) {
	out := []Summary{}
	var decodeErr error
	err := s.client.ScanPagesWithContext(ctx, &dynamodb.ScanInput{
		TableName:            aws.String(s.table),
		ProjectionExpression: aws.String("PK, SourceRef, Title, UpdatedAt"),
	}, func(page *dynamodb.ScanOutput, last bool) bool {
		for _, row := range page.Items {
			var it item
			if err := dynamodbattribute.UnmarshalMap(row, &it); err != nil {
				decodeErr = err
				return false
			}
			out = append(out, Summary{ID: it.PK, Title: it.Title, SourceRef: it.SourceRef, UpdatedAt: it.UpdatedAt})
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("scan sessions: %w", err)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode session: %w", decodeErr)
	}
	sortSummaries(out)
	return out, nil
}

func (s *DynamoStore) Delete(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	out, err := s.client.DeleteItemWithContext(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(s.table),
		Key:          key(id),
		ReturnValues: aws.String(dynamodb.ReturnValueAllOld),
	})
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	if len(out.Attributes) == 0 {
		return notFound(id)
	}
	return nil
}
