// Package suite holds the theo data model and turns suite files into it.
//
// # Suite Format
//
// A suite is one YAML document:
//
//	configuration:
//	  valgrind: false
//	  environment: KEY=VALUE        # or a list
//	  volatile: [out.txt, out.log]  # removed before and after every test
//	  setup: make                   # or a list, run once per suite
//	tests:
//	  - name: Smoke
//	    run: ./prog 7 7
//	    setup: rm -f state          # or a list, run before the test
//	    input: "stdin contents"
//	    output: 7                   # trimmed stdout must match
//	    exit: 0                     # exit code must match
//	    timeout: 10                 # seconds, default 600
//	    valgrind: true              # overrides configuration.valgrind
//
// # Embedded Blocks
//
// The same document may live inside any text file, between two lines that
// contain the sentinel (DefaultSentinel). The text in front of the sentinel
// on the opening line is a comment prefix that every line of the block must
// carry; it is stripped before parsing:
//
//	/*
//	 * !theo
//	 * tests:
//	 *   - name: Zero
//	 *     run: ./gcd 0 0
//	 *     output: 0
//	 * !theo
//	 */
//
// Resolve first tries the whole file as a document and only falls back to
// block extraction when the file is not a suite document on its own.
package suite
