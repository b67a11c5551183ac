package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jacentio/docbase/store"
)

func newGetCmd(a *app) *cobra.Command {
	var partition string
	cmd := &cobra.Command{
		Use:   "get <collection> <id>",
		Short: "Fetch a document by id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.repository(args[0])
			if err != nil {
				return err
			}
			var doc map[string]any
			if err := repo.Get(cmd.Context(), a.key(args[1], partition), &doc); err != nil {
				return err
			}
			return a.print(doc)
		},
	}
	cmd.Flags().StringVarP(&partition, "partition", "p", "", "Partition key value")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	var (
		limit   int
		equals  []string
		prefix  []string
		docType string
	)
	cmd := &cobra.Command{
		Use:   "list <collection>",
		Short: "List documents, optionally filtered",
		Long: `List documents of a collection. Filters are conjoined:

  docbase list Accounts --eq lastName=Doe --prefix firstName=J --type Contact`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.repository(args[0])
			if err != nil {
				return err
			}
			var filters []store.Filter
			for _, kv := range equals {
				path, value, err := splitPair(kv)
				if err != nil {
					return err
				}
				filters = append(filters, store.Eq(path, parseScalar(value)))
			}
			for _, kv := range prefix {
				path, value, err := splitPair(kv)
				if err != nil {
					return err
				}
				filters = append(filters, store.BeginsWith(path, value))
			}
			if docType != "" {
				filters = append(filters, store.Eq(store.DocTypeAttr, docType))
			}

			docs := []map[string]any{}
			f := store.And(filters...)
			if limit > 0 {
				err = repo.Take(cmd.Context(), f, limit, &docs)
			} else {
				err = repo.Where(cmd.Context(), f, &docs)
			}
			if err != nil {
				return err
			}
			return a.print(docs)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of documents (0 for all)")
	cmd.Flags().StringArrayVar(&equals, "eq", nil, "Equality filter path=value (repeatable)")
	cmd.Flags().StringArrayVar(&prefix, "prefix", nil, "Prefix filter path=prefix (repeatable)")
	cmd.Flags().StringVar(&docType, "type", "", "Only documents with this discriminator")
	return cmd
}

func newPutCmd(a *app) *cobra.Command {
	var (
		partition string
		create    bool
	)
	cmd := &cobra.Command{
		Use:   "put <collection> <json>",
		Short: "Write a raw JSON document",
		Long: `Write a JSON document. By default the document is upserted under its "id"
(a new id is assigned when it has none); with --create the write fails if
the id already exists.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.repository(args[0])
			if err != nil {
				return err
			}
			var doc map[string]any
			if err := json.Unmarshal([]byte(args[1]), &doc); err != nil {
				return fmt.Errorf("parse document: %w", err)
			}

			docID, _ := doc[store.IDAttr].(string)
			var id string
			if create || docID == "" {
				// Create takes no key, so the partition value travels on the document.
				if path := repo.PartitionPath(); partition != "" && path != "" {
					if current, ok := doc[path]; !ok || current == "" {
						doc[path] = partition
					}
				}
				id, err = repo.Create(cmd.Context(), doc)
			} else {
				id, err = repo.Upsert(cmd.Context(), a.key(docID, partition), doc)
			}
			if err != nil {
				return err
			}
			a.logger.Debug("wrote document", zap.String("collection", args[0]), zap.String("id", id))
			return a.print(map[string]string{store.IDAttr: id})
		},
	}
	cmd.Flags().StringVarP(&partition, "partition", "p", "", "Partition key value")
	cmd.Flags().BoolVar(&create, "create", false, "Fail if the document already exists")
	return cmd
}

func newRemoveCmd(a *app) *cobra.Command {
	var (
		partition string
		docType   string
	)
	cmd := &cobra.Command{
		Use:   "rm <collection> <id>",
		Short: "Remove a document by id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.repository(args[0])
			if err != nil {
				return err
			}
			var guard store.Filter
			if docType != "" {
				guard = store.Eq(store.DocTypeAttr, docType)
			}
			return repo.Remove(cmd.Context(), a.key(args[1], partition), guard)
		},
	}
	cmd.Flags().StringVarP(&partition, "partition", "p", "", "Partition key value")
	cmd.Flags().StringVar(&docType, "type", "", "Only remove a document with this discriminator")
	return cmd
}

func newQueryCmd(a *app) *cobra.Command {
	var params []string
	cmd := &cobra.Command{
		Use:   "query <collection> <statement>",
		Short: "Run a store-native statement",
		Long: `Run a store-native statement with named parameters: PartiQL for DynamoDB,
an extended JSON query document for MongoDB.

  docbase query Accounts 'SELECT * FROM "app-Accounts" WHERE lastName = @last' --param last=Doe`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.repository(args[0])
			if err != nil {
				return err
			}
			bound := store.Params{}
			for _, kv := range params {
				name, value, err := splitPair(kv)
				if err != nil {
					return err
				}
				bound[name] = parseScalar(value)
			}
			rows, err := repo.QueryRows(cmd.Context(), args[1], bound)
			if err != nil {
				return err
			}
			return a.print(rows)
		},
	}
	cmd.Flags().StringArrayVar(&params, "param", nil, "Statement parameter name=value (repeatable)")
	return cmd
}

// collectionInfo is the describe output of one collection.
type collectionInfo struct {
	Name         string `json:"name" yaml:"name"`
	Partitioned  bool   `json:"partitioned" yaml:"partitioned"`
	PartitionKey string `json:"partitionKey,omitempty" yaml:"partitionKey,omitempty"`
}

func newDescribeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "describe",
		Short: "Describe the configured collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			infos := []collectionInfo{}
			for _, name := range a.registry.Collections() {
				repo, err := a.repository(name)
				if err != nil {
					return err
				}
				infos = append(infos, collectionInfo{
					Name:         name,
					Partitioned:  repo.IsPartitioned(),
					PartitionKey: repo.PartitionPath(),
				})
			}
			return a.print(infos)
		},
	}
}

func splitPair(kv string) (string, string, error) {
	k, v, ok := strings.Cut(kv, "=")
	if !ok || k == "" {
		return "", "", fmt.Errorf("expected name=value, got %q", kv)
	}
	return k, v, nil
}

// parseScalar reads numbers and true/false from flag values; everything else
// stays a string. Quote a value ('"42"') to keep it a string.
func parseScalar(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		return unquoted
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
