package config

import (
	"errors"
	"fmt"

	"github.com/albertocavalcante/go-buildplan/internal/buildutil"
	"github.com/albertocavalcante/go-buildplan/label"
	"github.com/bazelbuild/buildtools/build"
)

// parseStarlark walks top-level call statements. Anything else is malformed:
// the file is a flat list of declarations, not a program.
func parseStarlark(filename string, data []byte) *declarations {
	d := newDeclarations(filename)

	f, err := build.ParseDefault(filename, data)
	if err != nil {
		d.malformed(filename, "syntax error: %v", err)
		return d
	}

	for _, stmt := range f.Stmt {
		call, ok := stmt.(*build.CallExpr)
		if !ok {
			if _, isComment := stmt.(*build.CommentBlock); isComment {
				continue
			}
			d.malformed(fmt.Sprintf("line %d", buildutil.Line(stmt)), "only declarations are allowed at top level")
			continue
		}

		switch name := buildutil.FuncName(call); name {
		case "android_application":
			d.starlarkApplication(call)
		case "signing_config":
			d.starlarkSigning(call)
		case "build_type":
			d.starlarkBuildType(call)
		case "build_features":
			d.starlarkFeatures(call)
		case "compile_options":
			d.starlarkCompileOptions(call)
		case "repositories":
			d.starlarkRepositories(call)
		case Implementation, CompileOnly, RuntimeOnly:
			d.starlarkDependency(call, name)
		default:
			d.malformed(fmt.Sprintf("line %d", buildutil.Line(call)), "unknown declaration %q", name)
		}
	}
	return d
}

// attrs wraps a call with typed accessors that record shape errors against a
// field prefix.
type attrs struct {
	d      *declarations
	call   *build.CallExpr
	prefix string
}

func (a attrs) field(name string) string {
	return a.prefix + "." + name
}

func (a attrs) shape(name string, err error) {
	var se *buildutil.ShapeError
	if errors.As(err, &se) {
		a.d.malformed(a.field(name), "want %s", se.Want)
		return
	}
	a.d.malformed(a.field(name), "%v", err)
}

func (a attrs) str(name string) (string, bool) {
	v, ok, err := buildutil.String(a.call, name)
	if err != nil {
		a.shape(name, err)
		return "", false
	}
	return v, ok
}

func (a attrs) strPtr(name string) *string {
	if v, ok := a.str(name); ok {
		return &v
	}
	return nil
}

func (a attrs) intPtr(name string) *int {
	v, ok, err := buildutil.Int(a.call, name)
	if err != nil {
		a.shape(name, err)
		return nil
	}
	if !ok {
		return nil
	}
	return &v
}

func (a attrs) boolean(name string) bool {
	v, _, err := buildutil.Bool(a.call, name)
	if err != nil {
		a.shape(name, err)
	}
	return v
}

func (a attrs) strings(name string) []string {
	v, _, err := buildutil.StringList(a.call, name)
	if err != nil {
		a.shape(name, err)
	}
	return v
}

// secret accepts only secret("alias"). A string literal is rejected without
// echoing its value.
func (a attrs) secret(name string) SecretRef {
	expr, ok := buildutil.Lookup(a.call, name)
	if !ok {
		return SecretRef{}
	}
	if _, isString := expr.(*build.StringExpr); isString {
		a.d.malformed(a.field(name), `plaintext secrets are not accepted; use secret("alias")`)
		return SecretRef{}
	}
	alias, ok := buildutil.UnaryCall(expr, "secret")
	if !ok {
		a.d.malformed(a.field(name), `want secret("alias")`)
		return SecretRef{}
	}
	ref, err := NewSecretRef(alias)
	if err != nil {
		a.d.malformed(a.field(name), "%v", err)
	}
	return ref
}

func (a attrs) allowOnly(names ...string) {
	allowed := make(map[string]bool, len(names))
	for _, n := range names {
		allowed[n] = true
	}
	for _, n := range buildutil.Names(a.call) {
		if !allowed[n] {
			a.d.malformed(a.field(n), "unknown attribute")
		}
	}
}

func (d *declarations) starlarkApplication(call *build.CallExpr) {
	if d.app != nil {
		d.malformed("application", "declared more than once")
		return
	}
	a := attrs{d: d, call: call, prefix: "application"}
	a.allowOnly("namespace", "application_id", "version_code", "version_name", "min_sdk", "target_sdk", "compile_sdk")
	d.app = &application{
		namespace:     a.strPtr("namespace"),
		applicationID: a.strPtr("application_id"),
		versionCode:   a.intPtr("version_code"),
		versionName:   a.strPtr("version_name"),
		minSdk:        a.intPtr("min_sdk"),
		targetSdk:     a.intPtr("target_sdk"),
		compileSdk:    a.intPtr("compile_sdk"),
	}
}

func (d *declarations) starlarkSigning(call *build.CallExpr) {
	name, _, _ := buildutil.String(call, "name")
	a := attrs{d: d, call: call, prefix: "signing_config." + name}
	a.allowOnly("name", "store_file", "store_password", "key_alias", "key_password")
	storeFile, _ := a.str("store_file")
	keyAlias, _ := a.str("key_alias")
	d.signing = append(d.signing, SigningProfile{
		Name:        name,
		StoreFile:   storeFile,
		KeyAlias:    keyAlias,
		StoreSecret: a.secret("store_password"),
		KeySecret:   a.secret("key_password"),
	})
}

func (d *declarations) starlarkBuildType(call *build.CallExpr) {
	name, _, _ := buildutil.String(call, "name")
	a := attrs{d: d, call: call, prefix: "build_type." + name}
	a.allowOnly("name", "minify", "signing_config", "proguard_files")
	signing, _ := a.str("signing_config")

	v := BuildVariant{
		Name:          name,
		Minify:        a.boolean("minify"),
		SigningConfig: signing,
	}

	elems, _, err := buildutil.List(call, "proguard_files")
	if err != nil {
		a.shape("proguard_files", err)
	}
	for _, elem := range elems {
		if str, ok := elem.(*build.StringExpr); ok {
			v.RuleFiles = append(v.RuleFiles, RuleFile{Path: str.Value})
			continue
		}
		if sdkName, ok := buildutil.UnaryCall(elem, "default_proguard_file"); ok {
			v.RuleFiles = append(v.RuleFiles, RuleFile{Path: sdkName, SDKDefault: true})
			continue
		}
		a.d.malformed(a.field("proguard_files"), `want strings or default_proguard_file("name")`)
	}

	d.variants = append(d.variants, v)
}

func (d *declarations) starlarkFeatures(call *build.CallExpr) {
	a := attrs{d: d, call: call, prefix: "build_features"}
	for _, name := range buildutil.Names(call) {
		if _, dup := d.features[name]; dup {
			d.malformed(a.field(name), "declared more than once")
		}
		d.features[name] = a.boolean(name)
	}
}

func (d *declarations) starlarkCompileOptions(call *build.CallExpr) {
	a := attrs{d: d, call: call, prefix: "compile_options"}
	a.allowOnly("source_compatibility", "target_compatibility")
	d.compile.SourceCompatibility, _ = a.str("source_compatibility")
	d.compile.TargetCompatibility, _ = a.str("target_compatibility")
}

func (d *declarations) starlarkRepositories(call *build.CallExpr) {
	a := attrs{d: d, call: call, prefix: "repositories"}
	a.allowOnly("urls")
	d.repositories = append(d.repositories, a.strings("urls")...)
}

// starlarkDependency accepts the Gradle-like forms:
//
//	implementation("group:artifact:version")
//	implementation(files("libs/a.aar", "libs/b.aar"))
//	implementation(file_tree(dir = "libs", include = ["*.aar"]))
//
// plus an optional variant = "release" keyword.
func (d *declarations) starlarkDependency(call *build.CallExpr, configuration string) {
	field := fmt.Sprintf("%s[line %d]", configuration, buildutil.Line(call))
	a := attrs{d: d, call: call, prefix: field}
	a.allowOnly("variant")
	variant, _ := a.str("variant")

	add := func(ref DependencyReference) {
		ref.Configuration = configuration
		ref.Variant = variant
		d.dependencies = append(d.dependencies, ref)
	}

	positional := 0
	for _, arg := range call.List {
		if _, ok := arg.(*build.AssignExpr); ok {
			continue
		}
		positional++

		switch e := arg.(type) {
		case *build.StringExpr:
			coord, err := label.ParseCoordinate(e.Value)
			if err != nil {
				d.malformed(field, "%v; use files(...) for local paths", err)
				continue
			}
			add(DependencyReference{Kind: KindCoordinate, Value: coord.String()})

		case *build.CallExpr:
			switch buildutil.FuncName(e) {
			case "files":
				paths, err := buildutil.PositionalStrings(e)
				if err != nil || len(paths) == 0 {
					d.malformed(field, "files() takes one or more path strings")
					continue
				}
				for _, p := range paths {
					add(DependencyReference{Kind: KindFile, Value: p})
				}
			case "file_tree":
				tree := attrs{d: d, call: e, prefix: field + ".file_tree"}
				tree.allowOnly("dir", "include")
				dir, ok := tree.str("dir")
				if !ok || dir == "" {
					d.malformed(tree.field("dir"), "required field is missing")
					continue
				}
				add(DependencyReference{Kind: KindFileTree, Value: dir, Include: tree.strings("include")})
			default:
				d.malformed(field, "want a coordinate string, files(...) or file_tree(...)")
			}

		default:
			d.malformed(field, "want a coordinate string, files(...) or file_tree(...)")
		}
	}

	if positional == 0 {
		d.malformed(field, "no dependency given")
	}
}
