package docbase

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/jacentio/docbase/store"
)

// Storage declares where documents of an entity type are stored.
type Storage struct {
	// Collection is the logical collection name the type is registered under. Required.
	Collection string

	// PartitionKey is the document attribute holding the partition value.
	// Required when the collection is partitioned.
	PartitionKey string
}

// Storable is implemented by entity types to declare their storage.
type Storable interface {
	Storage() Storage
}

// Document is embedded by every entity type. It carries the document id and
// the type discriminator, which is stamped on every write and never set by callers.
type Document struct {
	ID      string `json:"id"`
	DocType string `json:"_docType"`
}

// DocumentID returns the document id.
func (d *Document) DocumentID() string { return d.ID }

// SetDocumentID sets the document id.
func (d *Document) SetDocumentID(id string) { d.ID = id }

// DocumentType returns the stored discriminator.
func (d *Document) DocumentType() string { return d.DocType }

func (d *Document) stampDocType(docType string) { d.DocType = docType }

// Entity is the constraint satisfied by pointers to entity types: a struct
// embedding Document that declares its Storage.
type Entity[E any] interface {
	*E
	Storable
	DocumentID() string
	SetDocumentID(id string)
	DocumentType() string
	stampDocType(docType string)
}

// DocType returns the discriminator of entity type E: its Go type name.
func DocType[E any]() string {
	return reflect.TypeFor[E]().Name()
}

// resolveStorage reads and validates the storage declaration of E.
func resolveStorage[E any, P Entity[E]]() (Storage, error) {
	var zero E
	s := P(&zero).Storage()
	if strings.TrimSpace(s.Collection) == "" {
		return Storage{}, fmt.Errorf("%w: %s declares no collection name", store.ErrConfiguration, DocType[E]())
	}
	return s, nil
}
