// Package docbase maps Go entity types onto document collections.
//
// An entity embeds [Document] and declares where it is stored:
//
//	type Contact struct {
//	    docbase.Document
//	    FirstName string `json:"firstName"`
//	    LastName  string `json:"lastName"`
//	}
//
//	func (Contact) Storage() docbase.Storage {
//	    return docbase.Storage{Collection: "Accounts"}
//	}
//
// The first operation on a type binds it: its declaration is checked and its
// adapter is looked up in the [Catalog]'s registry. Bindings are kept for the
// life of the Catalog.
//
// # Type discrimination
//
// Every write stamps the document's "_docType" attribute with the Go type
// name, and every predicate read is conjoined with that discriminator, so
// several entity types can share one collection:
//
//	contacts := docbase.Of[Contact](catalog)
//	does, err := contacts.Where(ctx, store.Eq("lastName", "Doe"))
//
// Removes are guarded by the same clause. Raw statements passed to Query are
// not scoped.
//
// # Default catalog
//
// The package-level functions ([Get], [Create], [Where], ...) use the catalog
// returned by [Default], backed by [store.Default]:
//
//	_, err := dynamo.Register(ctx, store.Default(), cfg, logger)
//	john := &Contact{FirstName: "John", LastName: "Doe"}
//	err = docbase.Create(ctx, john)
package docbase
