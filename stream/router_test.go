package stream_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jacentio/docbase"
	"github.com/jacentio/docbase/stream"
)

type Address struct {
	Line1      string `json:"line1"`
	PostalCode string `json:"postalCode"`
}

type Contact struct {
	docbase.Document
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Addresses []Address `json:"addresses"`
}

func (Contact) Storage() docbase.Storage { return docbase.Storage{Collection: "Accounts"} }

type Order struct {
	docbase.Document
	Total float64 `json:"total"`
}

func (Order) Storage() docbase.Storage { return docbase.Storage{Collection: "Accounts"} }

func contactImage(id, first string) map[string]events.DynamoDBAttributeValue {
	return map[string]events.DynamoDBAttributeValue{
		"id":        events.NewStringAttribute(id),
		"_docType":  events.NewStringAttribute("Contact"),
		"firstName": events.NewStringAttribute(first),
		"lastName":  events.NewStringAttribute("Doe"),
		"addresses": events.NewListAttribute([]events.DynamoDBAttributeValue{
			events.NewMapAttribute(map[string]events.DynamoDBAttributeValue{
				"line1":      events.NewStringAttribute("One Microsoft Way"),
				"postalCode": events.NewStringAttribute("98052"),
			}),
		}),
	}
}

func record(name string, oldImage, newImage map[string]events.DynamoDBAttributeValue) events.DynamoDBEventRecord {
	image := newImage
	if image == nil {
		image = oldImage
	}
	return events.DynamoDBEventRecord{
		EventID:   name + "-" + image["id"].String(),
		EventName: name,
		Change: events.DynamoDBStreamRecord{
			Keys:     map[string]events.DynamoDBAttributeValue{"id": image["id"]},
			OldImage: oldImage,
			NewImage: newImage,
		},
	}
}

func TestRouter_DispatchesByDiscriminator(t *testing.T) {
	router := stream.NewRouter(nil)

	var contacts []stream.Change[Contact]
	stream.Handle(router, func(ctx context.Context, c stream.Change[Contact]) error {
		contacts = append(contacts, c)
		return nil
	})
	var orders int
	stream.Handle(router, func(ctx context.Context, c stream.Change[Order]) error {
		orders++
		return nil
	})
	assert.Equal(t, 2, router.Types())

	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		record("INSERT", nil, contactImage("c1", "John")),
		record("MODIFY", contactImage("c1", "John"), contactImage("c1", "Johnny")),
		record("REMOVE", contactImage("c1", "Johnny"), nil),
		record("INSERT", nil, map[string]events.DynamoDBAttributeValue{
			"id":       events.NewStringAttribute("o1"),
			"_docType": events.NewStringAttribute("Order"),
			"total":    events.NewNumberAttribute("12.5"),
		}),
	}}
	require.NoError(t, router.HandleEvent(context.Background(), event))

	require.Len(t, contacts, 3)
	assert.Equal(t, 1, orders)

	insert := contacts[0]
	assert.Equal(t, stream.EventInsert, insert.Event)
	assert.Equal(t, "c1", insert.Key.ID)
	assert.Nil(t, insert.Old)
	require.NotNil(t, insert.New)
	assert.Equal(t, "John", insert.New.FirstName)
	assert.Equal(t, "Contact", insert.New.DocType)
	require.Len(t, insert.New.Addresses, 1)
	assert.Equal(t, "98052", insert.New.Addresses[0].PostalCode)

	modify := contacts[1]
	assert.Equal(t, stream.EventModify, modify.Event)
	assert.Equal(t, "John", modify.Old.FirstName)
	assert.Equal(t, "Johnny", modify.New.FirstName)

	remove := contacts[2]
	assert.Equal(t, stream.EventRemove, remove.Event)
	assert.Nil(t, remove.New)
	assert.Equal(t, "Johnny", remove.Old.FirstName)
}

func TestRouter_StopsAtFirstError(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	router := stream.NewRouter(zap.New(core))

	boom := errors.New("boom")
	var seen []string
	stream.Handle(router, func(ctx context.Context, c stream.Change[Contact]) error {
		seen = append(seen, c.Key.ID)
		if c.Key.ID == "c2" {
			return boom
		}
		return nil
	})

	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		record("INSERT", nil, contactImage("c1", "A")),
		record("INSERT", nil, contactImage("c2", "B")),
		record("INSERT", nil, contactImage("c3", "C")),
	}}
	err := router.HandleEvent(context.Background(), event)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"c1", "c2"}, seen)

	entries := logs.FilterMessage("failed to process record").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "INSERT-c2", entries[0].ContextMap()["eventID"])
}

func TestRouter_DecodeError(t *testing.T) {
	router := stream.NewRouter(nil)
	stream.Handle(router, func(ctx context.Context, c stream.Change[Order]) error { return nil })

	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		record("INSERT", nil, map[string]events.DynamoDBAttributeValue{
			"id":       events.NewStringAttribute("o1"),
			"_docType": events.NewStringAttribute("Order"),
			"total":    events.NewStringAttribute("not a number"),
		}),
	}}
	assert.Error(t, router.HandleEvent(context.Background(), event))
}

func TestConvertImage(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"s":    events.NewStringAttribute("x"),
		"n":    events.NewNumberAttribute("42"),
		"b":    events.NewBinaryAttribute([]byte{0x01}),
		"bool": events.NewBooleanAttribute(true),
		"null": events.NewNullAttribute(),
		"ss":   events.NewStringSetAttribute([]string{"a", "b"}),
		"ns":   events.NewNumberSetAttribute([]string{"1", "2"}),
		"l":    events.NewListAttribute([]events.DynamoDBAttributeValue{events.NewStringAttribute("e")}),
		"m":    events.NewMapAttribute(map[string]events.DynamoDBAttributeValue{"k": events.NewNumberAttribute("1")}),
	}

	got := stream.ConvertImage(image)
	require.Len(t, got, len(image))

	assert.Equal(t, &types.AttributeValueMemberS{Value: "x"}, got["s"])
	assert.Equal(t, &types.AttributeValueMemberN{Value: "42"}, got["n"])
	assert.Equal(t, &types.AttributeValueMemberB{Value: []byte{0x01}}, got["b"])
	assert.Equal(t, &types.AttributeValueMemberBOOL{Value: true}, got["bool"])
	assert.Equal(t, &types.AttributeValueMemberNULL{Value: true}, got["null"])
	assert.Equal(t, &types.AttributeValueMemberSS{Value: []string{"a", "b"}}, got["ss"])
	assert.Equal(t, &types.AttributeValueMemberNS{Value: []string{"1", "2"}}, got["ns"])
	assert.Equal(t, &types.AttributeValueMemberL{Value: []types.AttributeValue{&types.AttributeValueMemberS{Value: "e"}}}, got["l"])
	assert.Equal(t, &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{"k": &types.AttributeValueMemberN{Value: "1"}}}, got["m"])
}

func TestConvertImage_Empty(t *testing.T) {
	got := stream.ConvertImage(nil)
	if got == nil {
		t.Fatal("expected non-nil map for nil input")
	}
	if len(got) != 0 {
		t.Errorf("expected empty map, got %d keys", len(got))
	}
}
