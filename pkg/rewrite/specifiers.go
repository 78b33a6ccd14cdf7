package rewrite

import "github.com/gnana997/cjs2esm/pkg/ast"

// importSpecifiers builds the specifier list for the binding on the left of
// a require. A bare identifier is a default import, an object pattern yields
// one named import per property in declared order.
func importSpecifiers(binding ast.Binding) ([]ast.ImportSpecifier, error) {
	switch b := binding.Data.(type) {
	case *ast.BIdentifier:
		return []ast.ImportSpecifier{{
			Kind:  ast.ImportDefault,
			Local: ast.IdentName(b.Name),
		}}, nil

	case *ast.BObject:
		specifiers := make([]ast.ImportSpecifier, 0, len(b.Properties))
		for i := range b.Properties {
			spec, err := namedImportSpecifier(&b.Properties[i])
			if err != nil {
				return nil, err
			}
			specifiers = append(specifiers, spec)
		}
		return specifiers, nil

	case *ast.BArray:
		return nil, unsupported("array pattern")
	case *ast.BExpr:
		return nil, unsupported("member expression target")
	default:
		return nil, unsupported("binding pattern")
	}
}

func namedImportSpecifier(prop *ast.PropertyBinding) (ast.ImportSpecifier, error) {
	switch {
	case prop.IsRest:
		return ast.ImportSpecifier{}, unsupported("rest element in object pattern")
	case prop.Default != nil:
		return ast.ImportSpecifier{}, unsupported("default value for %q", prop.Key.Text)
	case prop.IsComputed:
		return ast.ImportSpecifier{}, unsupported("computed property key")
	case prop.IsNumeric:
		return ast.ImportSpecifier{}, unsupported("numeric property key %s", prop.Key.Text)
	}

	if prop.IsShorthand() {
		imported := prop.Key
		return ast.ImportSpecifier{
			Kind:     ast.ImportNamed,
			Imported: &imported,
			Local:    prop.Key,
		}, nil
	}

	value, ok := prop.Value.Data.(*ast.BIdentifier)
	if !ok {
		return ast.ImportSpecifier{}, unsupported("nested pattern for %q", prop.Key.Text)
	}
	imported := prop.Key
	return ast.ImportSpecifier{
		Kind:     ast.ImportNamed,
		Imported: &imported,
		Local:    ast.IdentName(value.Name),
	}, nil
}

// exportSpecifier pairs the exported property name with the assigned
// identifier. The property is the original name and the identifier is the
// alias: "exports.foo = bar" becomes "export { foo as bar }".
func exportSpecifier(property string, ident *ast.EIdentifier) ast.ExportSpecifier {
	alias := ast.IdentName(ident.Name)
	return ast.ExportSpecifier{
		Orig:     ast.IdentName(property),
		Exported: &alias,
	}
}
