package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/daimatz/gojvm/pkg/vm"
	"github.com/spf13/cobra"
)

var (
	flagJmodPath  string
	flagClassPath string
)

var runCmd = &cobra.Command{
	Use:   "run <classfile>",
	Short: "Execute a compiled .class file's public static void main(String[])",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filename := args[0]
		classPath := flagClassPath
		if classPath == "" {
			classPath = filepath.Dir(filename)
		}
		className := strings.TrimSuffix(filepath.Base(filename), ".class")

		jmodPath := flagJmodPath
		if jmodPath == "" {
			jmodPath = findJmodPath()
		}
		if jmodPath == "" {
			return fmt.Errorf("could not find java.base.jmod: set --jmod, JAVA_HOME, or JAVA_BASE_JMOD")
		}

		bootstrap := vm.NewJmodClassLoader(jmodPath)
		userCL := vm.NewUserClassLoader(classPath, bootstrap)

		m := vm.New(userCL)
		return m.Execute(className)
	},
}

// findJmodPath locates java.base.jmod the same way a JAVA_HOME-aware
// build tool would: an explicit override first, then the active JDK
// install, then a best-effort glob over the usual Linux package layout.
func findJmodPath() string {
	if env := os.Getenv("JAVA_BASE_JMOD"); env != "" {
		return env
	}
	if javaHome := os.Getenv("JAVA_HOME"); javaHome != "" {
		p := filepath.Join(javaHome, "jmods", "java.base.jmod")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	matches, _ := filepath.Glob("/usr/lib/jvm/java-*-openjdk-*/jmods/java.base.jmod")
	if len(matches) > 0 {
		return matches[0]
	}
	return ""
}

func init() {
	runCmd.Flags().StringVar(&flagJmodPath, "jmod", "", "path to java.base.jmod (overrides JAVA_HOME autodetection)")
	runCmd.Flags().StringVar(&flagClassPath, "classpath", "", "directory to resolve user classes from (defaults to the class file's directory)")
}
