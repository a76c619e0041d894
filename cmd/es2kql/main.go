// Copyright 2024 The kuery Authors
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

// Command es2kql translates an ES query document, read from stdin,
// into the equivalent KQL expression.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/kueryql/kuery/kql"
	"github.com/kueryql/kuery/query"
)

func main() {
	mustClause := flag.Bool("must", false, "Expect conjunctions in the boolean 'must' clause instead of 'filter'")
	flag.Parse()

	buf, err := io.ReadAll(os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot read stdin: %v\n", err)
		os.Exit(1)
	}

	q, err := query.Unmarshal(buf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "query parsing error: %v\n", err)
		os.Exit(1)
	}

	r := kql.Renderer{FiltersInMustClause: *mustClause}
	text, err := r.Render(q)
	if err != nil {
		fmt.Fprintf(os.Stderr, "KQL rendering error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(text)
}
