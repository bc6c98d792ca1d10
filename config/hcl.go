package config

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/albertocavalcante/go-buildplan/label"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
)

// hclRoot decodes all top-level blocks of an HCL config file.
type hclRoot struct {
	Application  []*hclApplication  `hcl:"application,block"`
	Signing      []*hclSigning      `hcl:"signing_config,block"`
	BuildTypes   []*hclBuildType    `hcl:"build_type,block"`
	Features     []*hclFeatures     `hcl:"build_features,block"`
	Compile      []*hclCompile      `hcl:"compile_options,block"`
	Repositories []*hclRepositories `hcl:"repositories,block"`
	Dependencies []*hclDependency   `hcl:"dependency,block"`
}

type hclApplication struct {
	Namespace     *string `hcl:"namespace,optional"`
	ApplicationID *string `hcl:"application_id,optional"`
	VersionCode   *int    `hcl:"version_code,optional"`
	VersionName   *string `hcl:"version_name,optional"`
	SDK           *hclSDK `hcl:"sdk,block"`
}

type hclSDK struct {
	Min     *int `hcl:"min,optional"`
	Target  *int `hcl:"target,optional"`
	Compile *int `hcl:"compile,optional"`
}

type hclSigning struct {
	Name          string         `hcl:"name,label"`
	StoreFile     string         `hcl:"store_file,optional"`
	KeyAlias      string         `hcl:"key_alias,optional"`
	StorePassword hcl.Expression `hcl:"store_password,optional"`
	KeyPassword   hcl.Expression `hcl:"key_password,optional"`
}

type hclBuildType struct {
	Name          string         `hcl:"name,label"`
	Minify        bool           `hcl:"minify,optional"`
	SigningConfig string         `hcl:"signing_config,optional"`
	ProguardFiles hcl.Expression `hcl:"proguard_files,optional"`
}

type hclFeatures struct {
	Remain hcl.Body `hcl:",remain"`
}

type hclCompile struct {
	SourceCompatibility string `hcl:"source_compatibility,optional"`
	TargetCompatibility string `hcl:"target_compatibility,optional"`
}

type hclRepositories struct {
	URLs []string `hcl:"urls"`
}

type hclDependency struct {
	Configuration string   `hcl:"configuration,label"`
	Coordinate    string   `hcl:"coordinate,optional"`
	Files         []string `hcl:"files,optional"`
	FileTree      string   `hcl:"file_tree,optional"`
	Include       []string `hcl:"include,optional"`
	Variant       string   `hcl:"variant,optional"`
}

// secretType and sdkRuleType are opaque capsule values produced by the
// secret() and default_proguard_file() functions. A plain string can never be
// mistaken for either.
var (
	secretType  = cty.Capsule("secret", reflect.TypeOf(""))
	sdkRuleType = cty.Capsule("sdk_rule_file", reflect.TypeOf(""))
)

func capsuleFunc(ty cty.Type, param string) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{{Name: param, Type: cty.String}},
		Type:   function.StaticReturnType(ty),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			s := args[0].AsString()
			if s == "" {
				return cty.NilVal, fmt.Errorf("%s cannot be empty", param)
			}
			return cty.CapsuleVal(ty, &s), nil
		},
	})
}

func hclEvalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Functions: map[string]function.Function{
			"secret":                capsuleFunc(secretType, "alias"),
			"default_proguard_file": capsuleFunc(sdkRuleType, "name"),
		},
	}
}

func parseHCL(filename string, data []byte) *declarations {
	d := newDeclarations(filename)

	file, diags := hclparse.NewParser().ParseHCL(data, filename)
	if diags.HasErrors() {
		d.diagnostics(diags)
		return d
	}

	ctx := hclEvalContext()
	var root hclRoot
	if diags := gohcl.DecodeBody(file.Body, ctx, &root); diags.HasErrors() {
		d.diagnostics(diags)
		return d
	}

	if len(root.Application) > 1 {
		d.malformed("application", "declared more than once")
	}
	if len(root.Application) > 0 {
		app := root.Application[0]
		d.app = &application{
			namespace:     app.Namespace,
			applicationID: app.ApplicationID,
			versionCode:   app.VersionCode,
			versionName:   app.VersionName,
		}
		if app.SDK != nil {
			d.app.minSdk = app.SDK.Min
			d.app.targetSdk = app.SDK.Target
			d.app.compileSdk = app.SDK.Compile
		}
	}

	for _, s := range root.Signing {
		field := "signing_config." + s.Name
		d.signing = append(d.signing, SigningProfile{
			Name:        s.Name,
			StoreFile:   s.StoreFile,
			KeyAlias:    s.KeyAlias,
			StoreSecret: d.hclSecret(ctx, s.StorePassword, field+".store_password"),
			KeySecret:   d.hclSecret(ctx, s.KeyPassword, field+".key_password"),
		})
	}

	for _, bt := range root.BuildTypes {
		d.variants = append(d.variants, BuildVariant{
			Name:          bt.Name,
			Minify:        bt.Minify,
			SigningConfig: bt.SigningConfig,
			RuleFiles:     d.hclRuleFiles(ctx, bt.ProguardFiles, "build_type."+bt.Name+".proguard_files"),
		})
	}

	for _, f := range root.Features {
		d.hclFeatures(ctx, f)
	}
	for _, c := range root.Compile {
		d.compile = CompileOptions{
			SourceCompatibility: c.SourceCompatibility,
			TargetCompatibility: c.TargetCompatibility,
		}
	}
	for _, r := range root.Repositories {
		d.repositories = append(d.repositories, r.URLs...)
	}
	for i, dep := range root.Dependencies {
		d.hclDependency(dep, fmt.Sprintf("dependency.%s[%d]", dep.Configuration, i))
	}
	return d
}

func (d *declarations) diagnostics(diags hcl.Diagnostics) {
	for _, diag := range diags {
		if diag.Severity != hcl.DiagError {
			continue
		}
		field := d.filename
		if diag.Subject != nil {
			field = fmt.Sprintf("%s:%d", diag.Subject.Filename, diag.Subject.Start.Line)
		}
		d.malformed(field, "%s; %s", diag.Summary, diag.Detail)
	}
}

func (d *declarations) hclSecret(ctx *hcl.EvalContext, expr hcl.Expression, field string) SecretRef {
	val, diags := expr.Value(ctx)
	if diags.HasErrors() {
		d.diagnostics(diags)
		return SecretRef{}
	}
	if val.IsNull() {
		return SecretRef{}
	}
	if val.Type().Equals(cty.String) {
		d.malformed(field, `plaintext secrets are not accepted; use secret("alias")`)
		return SecretRef{}
	}
	if !val.Type().Equals(secretType) {
		d.malformed(field, `want secret("alias")`)
		return SecretRef{}
	}
	ref, err := NewSecretRef(*val.EncapsulatedValue().(*string))
	if err != nil {
		d.malformed(field, "%v", err)
	}
	return ref
}

func (d *declarations) hclRuleFiles(ctx *hcl.EvalContext, expr hcl.Expression, field string) []RuleFile {
	val, diags := expr.Value(ctx)
	if diags.HasErrors() {
		d.diagnostics(diags)
		return nil
	}
	if val.IsNull() {
		return nil
	}
	if !val.Type().IsTupleType() && !val.Type().IsListType() {
		d.malformed(field, "want a list")
		return nil
	}

	var out []RuleFile
	for it := val.ElementIterator(); it.Next(); {
		_, elem := it.Element()
		switch {
		case elem.Type().Equals(cty.String) && elem.IsKnown() && !elem.IsNull():
			out = append(out, RuleFile{Path: elem.AsString()})
		case elem.Type().Equals(sdkRuleType):
			out = append(out, RuleFile{Path: *elem.EncapsulatedValue().(*string), SDKDefault: true})
		default:
			d.malformed(field, `want strings or default_proguard_file("name")`)
		}
	}
	return out
}

func (d *declarations) hclFeatures(ctx *hcl.EvalContext, f *hclFeatures) {
	attrs, diags := f.Remain.JustAttributes()
	if diags.HasErrors() {
		d.diagnostics(diags)
		return
	}
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		field := "build_features." + name
		val, diags := attrs[name].Expr.Value(ctx)
		if diags.HasErrors() {
			d.diagnostics(diags)
			continue
		}
		b, err := convert.Convert(val, cty.Bool)
		if err != nil || b.IsNull() || !b.IsKnown() {
			d.malformed(field, "want true or false")
			continue
		}
		if _, dup := d.features[name]; dup {
			d.malformed(field, "declared more than once")
		}
		d.features[name] = b.True()
	}
}

func (d *declarations) hclDependency(dep *hclDependency, field string) {
	add := func(ref DependencyReference) {
		ref.Configuration = dep.Configuration
		ref.Variant = dep.Variant
		d.dependencies = append(d.dependencies, ref)
	}

	forms := 0
	if dep.Coordinate != "" {
		forms++
		coord, err := label.ParseCoordinate(dep.Coordinate)
		if err != nil {
			d.malformed(field+".coordinate", "%v", err)
		} else {
			add(DependencyReference{Kind: KindCoordinate, Value: coord.String()})
		}
	}
	if len(dep.Files) > 0 {
		forms++
		for _, p := range dep.Files {
			if p == "" {
				d.malformed(field+".files", "empty path")
				continue
			}
			add(DependencyReference{Kind: KindFile, Value: p})
		}
	}
	if dep.FileTree != "" {
		forms++
		add(DependencyReference{Kind: KindFileTree, Value: dep.FileTree, Include: dep.Include})
	} else if len(dep.Include) > 0 {
		d.malformed(field+".include", "include requires file_tree")
	}

	switch forms {
	case 0:
		d.malformed(field, "one of coordinate, files or file_tree is required")
	case 1:
	default:
		d.malformed(field, "coordinate, files and file_tree are mutually exclusive")
	}
}
