// Package stream routes DynamoDB Streams change records to typed handlers.
//
// Several entity types may share one table, so a Router dispatches each
// record by the document's discriminator attribute and decodes its images
// into the registered entity type:
//
//	router := stream.NewRouter(logger)
//	stream.Handle(router, func(ctx context.Context, c stream.Change[Contact]) error {
//		...
//	})
//	lambda.Start(router.HandleEvent)
package stream

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"go.uber.org/zap"

	"github.com/jacentio/docbase"
	"github.com/jacentio/docbase/store"
)

// EventName is the kind of change a record describes.
type EventName string

// Change kinds reported by DynamoDB Streams.
const (
	EventInsert EventName = "INSERT"
	EventModify EventName = "MODIFY"
	EventRemove EventName = "REMOVE"
)

// Change is one decoded change record of entity type E. Old is nil for
// inserts and New is nil for removes, as are both when the stream view type
// carries no images.
type Change[E any] struct {
	EventID string
	Event   EventName
	Key     store.Key
	Old     *E
	New     *E
}

type recordHandler func(ctx context.Context, record events.DynamoDBEventRecord) error

// Router dispatches stream records to the handler registered for the
// record's discriminator. Records of unregistered types are skipped.
type Router struct {
	handlers map[string]recordHandler
	logger   *zap.Logger
}

// NewRouter creates an empty Router. A nil logger disables logging.
func NewRouter(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		handlers: make(map[string]recordHandler),
		logger:   logger,
	}
}

// Handle registers fn for changes to documents of entity type E. A later
// registration for the same type replaces the earlier one.
func Handle[E any, P docbase.Entity[E]](r *Router, fn func(ctx context.Context, change Change[E]) error) {
	docType := docbase.DocType[E]()
	r.handlers[docType] = func(ctx context.Context, record events.DynamoDBEventRecord) error {
		change := Change[E]{
			EventID: record.EventID,
			Event:   EventName(record.EventName),
			Key:     keyOf(record.Change.Keys),
		}
		var err error
		if change.Old, err = decode[E](record.Change.OldImage); err != nil {
			return fmt.Errorf("decode old image: %w", err)
		}
		if change.New, err = decode[E](record.Change.NewImage); err != nil {
			return fmt.Errorf("decode new image: %w", err)
		}
		return fn(ctx, change)
	}
}

// Types returns the number of registered entity types.
func (r *Router) Types() int {
	return len(r.handlers)
}

// HandleEvent processes a batch of stream records in order. It stops at the
// first failing record and returns its error so the batch is retried.
// This function is designed to be used as an AWS Lambda handler.
func (r *Router) HandleEvent(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := r.processRecord(ctx, record); err != nil {
			r.logger.Error("failed to process record",
				zap.String("eventID", record.EventID),
				zap.String("eventName", record.EventName),
				zap.Error(err),
			)
			return err
		}
	}
	return nil
}

func (r *Router) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	docType := getStringAttr(record.Change.NewImage, store.DocTypeAttr)
	if docType == "" {
		docType = getStringAttr(record.Change.OldImage, store.DocTypeAttr)
	}

	handler, ok := r.handlers[docType]
	if !ok {
		r.logger.Debug("skipping record",
			zap.String("eventID", record.EventID),
			zap.String("docType", docType),
		)
		return nil
	}

	if err := handler(ctx, record); err != nil {
		return fmt.Errorf("%s %s: %w", docType, record.EventName, err)
	}
	r.logger.Debug("processed record",
		zap.String("eventID", record.EventID),
		zap.String("docType", docType),
		zap.String("eventName", record.EventName),
	)
	return nil
}

// decode unmarshals a stream image into a new E. An empty image yields nil.
func decode[E any](image map[string]events.DynamoDBAttributeValue) (*E, error) {
	if len(image) == 0 {
		return nil, nil
	}
	var out E
	err := attributevalue.UnmarshalMapWithOptions(ConvertImage(image), &out, func(o *attributevalue.DecoderOptions) {
		o.TagKey = "json"
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// keyOf reads the document key from a record's key attributes: the id and,
// for partitioned tables, the other string key attribute.
func keyOf(keys map[string]events.DynamoDBAttributeValue) store.Key {
	var key store.Key
	for name, v := range keys {
		if v.DataType() != events.DataTypeString {
			continue
		}
		if name == store.IDAttr {
			key.ID = v.String()
		} else {
			key.PartitionKey = v.String()
		}
	}
	return key
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}
