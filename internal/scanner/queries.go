package scanner

// Capture names shared by every query.
const (
	captureFunction   = "function"
	captureClass      = "class"
	captureImport     = "import"
	captureFromModule = "from.module"
	captureFromName   = "from.name"
)

// Queries maps a grammar name to the tree-sitter query extracting declared
// functions, classes and import tokens from it.
var Queries = map[string]string{
	"go": `
		(function_declaration name: (identifier) @function)
		(method_declaration name: (field_identifier) @function)
		(type_spec name: (type_identifier) @class)
		(import_spec path: (_) @import)
	`,
	"python": `
		(function_definition name: (identifier) @function)
		(class_definition name: (identifier) @class)
		(import_statement name: (dotted_name) @import)
		(import_statement name: (aliased_import name: (dotted_name) @import))
		(import_from_statement
			module_name: (_) @from.module
			name: (dotted_name) @from.name)
		(import_from_statement
			module_name: (_) @from.module
			name: (aliased_import name: (dotted_name) @from.name))
		(import_from_statement
			module_name: (_) @from.module
			(wildcard_import))
	`,
	"javascript": `
		(function_declaration name: (identifier) @function)
		(generator_function_declaration name: (identifier) @function)
		(class_declaration name: (identifier) @class)
		(import_statement source: (string) @import)
		(export_statement source: (string) @import)
	`,
	"typescript": `
		(function_declaration name: (identifier) @function)
		(generator_function_declaration name: (identifier) @function)
		(class_declaration name: (type_identifier) @class)
		(abstract_class_declaration name: (type_identifier) @class)
		(interface_declaration name: (type_identifier) @class)
		(import_statement source: (string) @import)
		(export_statement source: (string) @import)
	`,
}
