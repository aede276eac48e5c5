package infer

// defaultStoplist lists names that show up in nearly every analysis script
// and must never be mistaken for node dependencies: common import aliases
// for the data/plot stack, standard library modules, builtins, container
// types, and exception names.
func defaultStoplist() map[string]bool {
	names := []string{
		// data / plotting aliases
		"pd", "np", "plt", "sns", "px", "sm", "tf", "torch",
		"pandas", "numpy", "matplotlib", "seaborn", "plotly", "scipy",
		"sklearn", "statsmodels",
		// standard library modules
		"os", "sys", "re", "json", "csv", "math", "time", "datetime",
		"random", "itertools", "functools", "collections", "pathlib",
		"io", "pickle", "dill", "requests", "logging", "warnings",
		// builtins and container types
		"dict", "list", "set", "tuple", "str", "int", "float", "bool",
		"bytes", "object", "frozenset", "complex",
		"len", "range", "print", "sum", "min", "max", "abs", "round",
		"sorted", "reversed", "enumerate", "zip", "map", "filter",
		"open", "type", "isinstance", "issubclass", "getattr", "setattr",
		"hasattr", "repr", "format", "iter", "next", "vars", "id",
		"input", "hash", "any", "all", "super", "staticmethod",
		"classmethod", "property",
		// exception names
		"Exception", "BaseException", "ValueError", "TypeError",
		"KeyError", "IndexError", "AttributeError", "RuntimeError",
		"StopIteration", "ZeroDivisionError", "FileNotFoundError",
		"NotImplementedError", "OSError", "IOError", "ArithmeticError",
		// ubiquitous local conventions
		"self", "cls", "_",
	}

	stop := make(map[string]bool, len(names))
	for _, n := range names {
		stop[n] = true
	}

	return stop
}
