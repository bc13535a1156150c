package main

import (
	"github.com/spf13/pflag"
)

// bind connects a flag to a settings key. A flag only overrides the key when it is set.
func bind(fs *pflag.FlagSet, key, name string) {
	if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
		panic(err)
	}
}
