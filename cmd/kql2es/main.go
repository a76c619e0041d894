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

// Command kql2es translates a KQL expression into the equivalent
// ES query document.
//
// The expression is taken from the command line, or from stdin when
// no argument is given.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kueryql/kuery/kql"
	"github.com/kueryql/kuery/query"
)

func main() {
	mustClause := flag.Bool("must", false, "Put conjunctions in the boolean 'must' clause instead of 'filter'")
	strictWildcards := flag.Bool("strict-wildcards", false, "Reject values with a leading wildcard")
	ionOutput := flag.Bool("ion", false, "Emit the document as Ion text instead of JSON")
	flag.Parse()

	var src string
	if flag.NArg() > 0 {
		src = strings.Join(flag.Args(), " ")
	} else {
		buf, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot read stdin: %v\n", err)
			os.Exit(1)
		}
		src = string(buf)
	}

	p := kql.Parser{
		AllowLeadingWildcards: !*strictWildcards,
		FiltersInMustClause:   *mustClause,
	}
	q, err := p.Parse(src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "query parsing error: %v\n", err)
		os.Exit(1)
	}

	if *ionOutput {
		data, err := query.MarshalIon(q)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ion encoding error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(data))
		return
	}

	e := json.NewEncoder(os.Stdout)
	e.SetIndent("", "  ")
	if err := e.Encode(q.Encode()); err != nil {
		fmt.Fprintf(os.Stderr, "json encoding error: %v\n", err)
		os.Exit(1)
	}
}
