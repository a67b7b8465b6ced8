//go:build !js_eval

package settings

// NewJSEvaluator returns nil unless the module is built with the js_eval tag.
// Passing the nil result to WithEvaluator leaves the default expr engine in
// place.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	_ = applyJSEvaluatorOptions(opts)
	return nil
}
