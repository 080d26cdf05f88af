package main

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/remeh/sizedwaitgroup"

	"github.com/chazu/orc/compiler"
)

// checkAll compiles every orchestra concurrently with opts and reports the
// failures. It returns the number of orchestras that did not compile.
func checkAll(paths []string, opts compiler.Options) int {
	var mu sync.Mutex
	failed := 0

	wg := sizedwaitgroup.New(runtime.NumCPU())
	for _, path := range paths {
		wg.Add()
		go func(path string) {
			defer wg.Done()
			err := checkFile(path, opts)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
				return
			}
			fmt.Printf("%s: ok\n", path)
		}(path)
	}
	wg.Wait()
	return failed
}

func checkFile(path string, opts compiler.Options) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	orc, err := compiler.Read(string(src))
	if err != nil {
		return err
	}
	_, err = compiler.Compile(orc, opts)
	return err
}
