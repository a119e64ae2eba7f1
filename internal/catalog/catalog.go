// Package catalog declares the built-in entity set: a product catalog with
// its sellers plus a small school roster. Brands and departments stand alone.
// Each SQL dialect has matching goose migrations embedded in the binary.
package catalog

import (
	"embed"
	"fmt"
	"io/fs"

	"recordstore"
)

//go:embed migrations
var migrations embed.FS

var (
	str   = recordstore.TypeString
	num   = recordstore.TypeInteger
	dec   = recordstore.TypeDecimal
	flag  = recordstore.TypeBoolean
	ref   = recordstore.TypeReference
	owned = recordstore.OnDeleteCascade
)

var schemas = []recordstore.Schema{
	{
		Name: "categories",
		Fields: []recordstore.Field{
			{Name: "name", Type: str, Unique: true},
			{Name: "description", Type: str},
		},
	},
	{
		Name: "sellers",
		Fields: []recordstore.Field{
			{Name: "name", Type: str, Required: true},
			{Name: "email", Type: str, Required: true, Unique: true},
			{Name: "phone", Type: str},
		},
	},
	{
		Name: "products",
		Fields: []recordstore.Field{
			{Name: "name", Type: str, Required: true},
			{Name: "description", Type: str},
			{Name: "price", Type: dec},
			{Name: "stock_quantity", Type: num},
			{Name: "category_id", Type: ref, Ref: "categories"},
			{Name: "seller_id", Type: ref, Ref: "sellers", Required: true},
		},
	},
	{
		Name: "variants",
		Fields: []recordstore.Field{
			{Name: "product_id", Type: ref, Ref: "products", Required: true, OnDelete: owned},
			{Name: "sku", Type: str, Unique: true},
			{Name: "color", Type: str},
			{Name: "size", Type: str},
			{Name: "price", Type: dec},
			{Name: "stock_quantity", Type: num},
			{Name: "is_active", Type: flag},
		},
	},
	{
		Name: "reviews",
		Fields: []recordstore.Field{
			{Name: "product_id", Type: ref, Ref: "products", Required: true, OnDelete: owned},
			{Name: "rating", Type: num},
			{Name: "comment", Type: str},
			{Name: "reviewer_name", Type: str},
		},
	},
	{
		Name: "images",
		Fields: []recordstore.Field{
			{Name: "product_id", Type: ref, Ref: "products", Required: true, OnDelete: owned},
			{Name: "image_url", Type: str, Required: true},
			{Name: "alt_text", Type: str},
			{Name: "is_primary", Type: flag},
		},
	},
	{
		Name: "specifications",
		Fields: []recordstore.Field{
			{Name: "product_id", Type: ref, Ref: "products", Required: true, OnDelete: owned},
			{Name: "spec_name", Type: str, Required: true},
			{Name: "spec_value", Type: str},
		},
	},
	{
		Name: "teachers",
		Fields: []recordstore.Field{
			{Name: "name", Type: str},
			{Name: "email", Type: str, Unique: true},
			{Name: "phoneno", Type: str},
			{Name: "address", Type: str},
		},
	},
	{
		Name: "users",
		Fields: []recordstore.Field{
			{Name: "name", Type: str},
			{Name: "email", Type: str, Unique: true},
			{Name: "phoneno", Type: str},
			{Name: "address", Type: str},
			{Name: "country", Type: str},
			{Name: "state", Type: str},
			{Name: "zipcode", Type: str},
		},
	},
	{
		Name: "subjects",
		Fields: []recordstore.Field{
			{Name: "name", Type: str, Required: true, Unique: true},
		},
	},
	{
		Name: "students",
		Fields: []recordstore.Field{
			{Name: "name", Type: str},
			{Name: "email", Type: str, Unique: true},
			{Name: "phone", Type: str},
			{Name: "address", Type: str},
			{Name: "city", Type: str},
			{Name: "state", Type: str},
			{Name: "zip", Type: str},
			{Name: "subject_id", Type: ref, Ref: "subjects"},
		},
	},
	{
		Name: "brands",
		Fields: []recordstore.Field{
			{Name: "name", Type: str, Required: true, Unique: true},
		},
	},
	{
		Name: "departments",
		Fields: []recordstore.Field{
			{Name: "name", Type: str, Required: true, Unique: true},
		},
	},
}

// Schemas returns the built-in schemas in dependency order.
func Schemas() []recordstore.Schema {
	out := make([]recordstore.Schema, len(schemas))
	for i, s := range schemas {
		s.Fields = append([]recordstore.Field(nil), s.Fields...)
		out[i] = s
	}
	return out
}

// Migrations returns the embedded migrations and the directory holding the
// files for the given goose dialect.
func Migrations(dialect string) (fs.FS, string, error) {
	dir := "migrations/" + dialect
	if _, err := fs.Stat(migrations, dir); err != nil {
		return nil, "", fmt.Errorf("no built-in migrations for dialect %q", dialect)
	}
	return migrations, dir, nil
}
