package httpapi

import (
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"

	"recordstore"
)

// OpenAPI describes the routes served for schemas as an OpenAPI 3 document.
func OpenAPI(schemas []recordstore.Schema, basePath, version string) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:   "recordstore",
			Version: version,
		},
		Paths: openapi3.NewPaths(),
		Components: &openapi3.Components{
			Schemas: openapi3.Schemas{
				"Error":   componentValue(messageSchema("error")),
				"Message": componentValue(messageSchema("message")),
			},
		},
	}

	doc.Paths.Set("/health", &openapi3.PathItem{
		Get: &openapi3.Operation{
			OperationID: "health",
			Summary:     "Report whether the store is reachable",
			Responses: openapi3.NewResponses(
				openapi3.WithStatus(http.StatusOK, jsonResponse("Store reachable", nil)),
				openapi3.WithStatus(http.StatusServiceUnavailable, jsonResponse("Store unreachable", nil)),
			),
		},
	})

	for _, schema := range schemas {
		doc.Components.Schemas[schema.Name] = componentValue(recordSchema(schema))
		addEntityPaths(doc, schema, basePath)
	}
	for _, child := range schemas {
		for _, f := range child.References() {
			addRelatedPath(doc, f.Ref, child.Name, basePath)
		}
	}
	return doc
}

// refTo returns a reference to a registered component, carrying its value so
// the document validates without a loader pass.
func refTo(doc *openapi3.T, component string) *openapi3.SchemaRef {
	var value *openapi3.Schema
	if c, ok := doc.Components.Schemas[component]; ok {
		value = c.Value
	}
	return openapi3.NewSchemaRef("#/components/schemas/"+component, value)
}

func addEntityPaths(doc *openapi3.T, schema recordstore.Schema, basePath string) {
	name := schema.Name
	record := refTo(doc, name)
	list := arrayOf(record)
	tags := []string{name}
	body := &openapi3.RequestBodyRef{
		Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchemaRef(record),
	}

	filters := make(openapi3.Parameters, 0, len(schema.Fields)+1)
	filters = append(filters, &openapi3.ParameterRef{
		Value: openapi3.NewQueryParameter(recordstore.IDField).
			WithDescription("Filter on the record id").
			WithSchema(openapi3.NewStringSchema()),
	})
	for _, f := range schema.Fields {
		filters = append(filters, &openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter(f.Name).
				WithDescription("Filter on equality of " + f.Name).
				WithSchema(fieldSchema(f)),
		})
	}
	all := &openapi3.ParameterRef{
		Value: openapi3.NewQueryParameter("all").
			WithDescription("Remove every record and ignore the body").
			WithSchema(openapi3.NewBoolSchema()),
	}

	doc.Paths.Set(basePath+"/"+name, &openapi3.PathItem{
		Post: &openapi3.Operation{
			OperationID: "create_" + name,
			Summary:     "Create a " + name + " record",
			Tags:        tags,
			RequestBody: body,
			Responses: openapi3.NewResponses(
				openapi3.WithStatus(http.StatusCreated, jsonResponse("Created record", record)),
				openapi3.WithStatus(http.StatusBadRequest, errorResponse(doc, "Invalid record")),
				openapi3.WithStatus(http.StatusConflict, errorResponse(doc, "Unique value already taken")),
			),
		},
		Get: &openapi3.Operation{
			OperationID: "list_" + name,
			Summary:     "List " + name + " records matching every filter",
			Tags:        tags,
			Parameters:  filters,
			Responses: openapi3.NewResponses(
				openapi3.WithStatus(http.StatusOK, jsonResponse("Matching records", list)),
				openapi3.WithStatus(http.StatusBadRequest, errorResponse(doc, "Invalid filter")),
			),
		},
		Put: &openapi3.Operation{
			OperationID: "update_" + name,
			Summary:     "Update the records matching the id or a unique field",
			Tags:        tags,
			RequestBody: body,
			Responses: openapi3.NewResponses(
				openapi3.WithStatus(http.StatusOK, jsonResponse("Updated records", list)),
				openapi3.WithStatus(http.StatusNotFound, errorResponse(doc, "No matching record")),
				openapi3.WithStatus(http.StatusConflict, errorResponse(doc, "Unique value already taken")),
			),
		},
		Delete: &openapi3.Operation{
			OperationID: "delete_" + name,
			Summary:     "Delete the records matching the id or a unique field",
			Tags:        tags,
			Parameters:  openapi3.Parameters{all},
			RequestBody: &openapi3.RequestBodyRef{
				Value: openapi3.NewRequestBody().WithJSONSchemaRef(record),
			},
			Responses: openapi3.NewResponses(
				openapi3.WithStatus(http.StatusOK, jsonResponse("Removed records", list)),
				openapi3.WithStatus(http.StatusNotFound, errorResponse(doc, "No matching record")),
			),
		},
	})

	id := openapi3.Parameters{{Value: openapi3.NewPathParameter("id").WithSchema(openapi3.NewStringSchema())}}
	expand := &openapi3.ParameterRef{
		Value: openapi3.NewQueryParameter("expand").
			WithDescription("Comma separated reference fields to embed under _expand").
			WithSchema(openapi3.NewStringSchema()),
	}

	doc.Paths.Set(basePath+"/"+name+"/{id}", &openapi3.PathItem{
		Parameters: id,
		Get: &openapi3.Operation{
			OperationID: "read_" + name,
			Summary:     "Read a " + name + " record",
			Tags:        tags,
			Parameters:  openapi3.Parameters{expand},
			Responses: openapi3.NewResponses(
				openapi3.WithStatus(http.StatusOK, jsonResponse("The record", record)),
				openapi3.WithStatus(http.StatusNotFound, errorResponse(doc, "No such record")),
			),
		},
		Put: &openapi3.Operation{
			OperationID: "update_" + name + "_by_id",
			Summary:     "Change the given fields of a " + name + " record",
			Tags:        tags,
			RequestBody: body,
			Responses: openapi3.NewResponses(
				openapi3.WithStatus(http.StatusOK, jsonResponse("Record updated", refTo(doc, "Message"))),
				openapi3.WithStatus(http.StatusNotFound, errorResponse(doc, "No such record")),
				openapi3.WithStatus(http.StatusConflict, errorResponse(doc, "Unique value already taken")),
			),
		},
		Delete: &openapi3.Operation{
			OperationID: "delete_" + name + "_by_id",
			Summary:     "Delete a " + name + " record",
			Tags:        tags,
			Responses: openapi3.NewResponses(
				openapi3.WithStatus(http.StatusOK, jsonResponse("Record deleted", refTo(doc, "Message"))),
				openapi3.WithStatus(http.StatusNotFound, errorResponse(doc, "No such record")),
			),
		},
	})
}

func addRelatedPath(doc *openapi3.T, parent, child, basePath string) {
	doc.Paths.Set(fmt.Sprintf("%s/%s/{id}/%s", basePath, parent, child), &openapi3.PathItem{
		Parameters: openapi3.Parameters{{Value: openapi3.NewPathParameter("id").WithSchema(openapi3.NewStringSchema())}},
		Get: &openapi3.Operation{
			OperationID: "list_" + parent + "_" + child,
			Summary:     "List the " + child + " records that reference a " + parent + " record",
			Tags:        []string{parent},
			Responses: openapi3.NewResponses(
				openapi3.WithStatus(http.StatusOK, jsonResponse("Referencing records", arrayOf(refTo(doc, child)))),
				openapi3.WithStatus(http.StatusNotFound, errorResponse(doc, "No such record")),
			),
		},
	})
}

func recordSchema(schema recordstore.Schema) *openapi3.Schema {
	s := openapi3.NewObjectSchema().
		WithProperty(recordstore.IDField, described(openapi3.NewStringSchema(), "Store assigned identifier"))
	for _, f := range schema.Fields {
		s = s.WithProperty(f.Name, fieldSchema(f))
		if f.Required {
			s.Required = append(s.Required, f.Name)
		}
	}
	return s
}

func fieldSchema(f recordstore.Field) *openapi3.Schema {
	switch f.Type {
	case recordstore.TypeInteger:
		return openapi3.NewInt64Schema()
	case recordstore.TypeBoolean:
		return openapi3.NewBoolSchema()
	case recordstore.TypeDecimal:
		return described(openapi3.NewStringSchema(), "Exact decimal, numbers are accepted on input")
	case recordstore.TypeReference:
		return described(openapi3.NewStringSchema(), "Identifier of a "+f.Ref+" record")
	default:
		return openapi3.NewStringSchema()
	}
}

func messageSchema(property string) *openapi3.Schema {
	s := openapi3.NewObjectSchema().WithProperty(property, openapi3.NewStringSchema())
	s.Required = []string{property}
	return s
}

func componentValue(s *openapi3.Schema) *openapi3.SchemaRef {
	return openapi3.NewSchemaRef("", s)
}

func described(s *openapi3.Schema, description string) *openapi3.Schema {
	s.Description = description
	return s
}

func arrayOf(items *openapi3.SchemaRef) *openapi3.SchemaRef {
	s := openapi3.NewArraySchema()
	s.Items = items
	return openapi3.NewSchemaRef("", s)
}

func jsonResponse(description string, body *openapi3.SchemaRef) *openapi3.ResponseRef {
	resp := openapi3.NewResponse().WithDescription(description)
	if body != nil {
		resp = resp.WithJSONSchemaRef(body)
	}
	return &openapi3.ResponseRef{Value: resp}
}

func errorResponse(doc *openapi3.T, description string) *openapi3.ResponseRef {
	return jsonResponse(description, refTo(doc, "Error"))
}
