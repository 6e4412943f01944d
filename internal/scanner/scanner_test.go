package scanner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repograph/internal/facts"
	"repograph/internal/source"
)

func newScanner(t *testing.T) *Scanner {
	t.Helper()
	s, err := New()
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func parse(t *testing.T, s *Scanner, path, content string) facts.FileFact {
	t.Helper()
	return s.ParseFile(source.File{Path: path, Content: []byte(content)})
}

func TestParseGo(t *testing.T) {
	s := newScanner(t)
	fact := parse(t, s, "cmd/main.go", `package main

import (
	"fmt"
	"example.com/app/util"
)

type Server struct{}

func (s *Server) Run() {}

func main() { fmt.Println(util.X) }
`)
	assert.Equal(t, "go", fact.Type)
	assert.Empty(t, fact.Error)
	assert.Equal(t, []string{"fmt", "example.com/app/util"}, fact.Imports)
	assert.ElementsMatch(t, []string{"Run", "main"}, fact.Functions)
	assert.Equal(t, []string{"Server"}, fact.Classes)
	assert.Contains(t, fact.Content, "package main")
}

func TestParsePythonImports(t *testing.T) {
	s := newScanner(t)
	fact := parse(t, s, "pkg/b.py", `import os
import numpy as np
from pkg.a import helper
from pkg.a import other as o
from . import sibling
from lib import *

class Widget:
    def render(self):
        pass

def main():
    pass
`)
	assert.Equal(t, "python", fact.Type)
	assert.Empty(t, fact.Error)
	assert.Equal(t, []string{"os", "numpy", "pkg.a.helper", "pkg.a.other", ".sibling", "lib"}, fact.Imports)
	assert.Equal(t, []string{"Widget"}, fact.Classes)
	assert.ElementsMatch(t, []string{"render", "main"}, fact.Functions)
}

func TestParsePythonRepeatedImportsKept(t *testing.T) {
	s := newScanner(t)
	fact := parse(t, s, "x.py", "import os\nimport os\n")
	assert.Equal(t, []string{"os", "os"}, fact.Imports)
}

func TestParseJavaScriptAndTypeScript(t *testing.T) {
	s := newScanner(t)

	js := parse(t, s, "web/app.js", `import { a } from './util';
export { b } from "./other";
class App {}
function start() {}
`)
	assert.Equal(t, "javascript", js.Type)
	assert.Equal(t, []string{"./util", "./other"}, js.Imports)
	assert.Equal(t, []string{"App"}, js.Classes)
	assert.Equal(t, []string{"start"}, js.Functions)

	ts := parse(t, s, "web/model.ts", `import { Base } from './base';
export interface Shape { area(): number }
export abstract class Model {}
export function build(): void {}
`)
	assert.Equal(t, "typescript", ts.Type)
	assert.Equal(t, []string{"./base"}, ts.Imports)
	assert.ElementsMatch(t, []string{"Shape", "Model"}, ts.Classes)
	assert.Equal(t, []string{"build"}, ts.Functions)

	tsx := parse(t, s, "web/view.tsx", "import React from 'react';\n")
	assert.Equal(t, "tsx", tsx.Type)
	assert.Equal(t, []string{"react"}, tsx.Imports)
}

func TestParseSyntaxErrorsKeepFacts(t *testing.T) {
	s := newScanner(t)
	fact := parse(t, s, "broken.py", "import os\ndef ok():\n    pass\ndef broken(:\n")
	assert.Equal(t, "python", fact.Type)
	assert.Empty(t, fact.Error)
	assert.Contains(t, fact.Imports, "os")
	assert.Contains(t, fact.Functions, "ok")
}

func TestParseLineExtractors(t *testing.T) {
	s := newScanner(t)

	java := parse(t, s, "src/App.java", `package com.example;

import java.util.List;
import static org.junit.Assert.*;

public class App {
    public static void main(String[] args) {
        if (args.length > 0) {
        }
    }
}
`)
	assert.Equal(t, "java", java.Type)
	assert.Equal(t, []string{"java.util.List", "org.junit.Assert.*"}, java.Imports)
	assert.Equal(t, []string{"App"}, java.Classes)
	assert.Equal(t, []string{"main"}, java.Functions)

	kotlin := parse(t, s, "src/User.kt", `import kotlin.math.max as m

data class User(val name: String)

fun greet(name: String): String = "hi"
`)
	assert.Equal(t, "kotlin", kotlin.Type)
	assert.Equal(t, []string{"kotlin.math.max"}, kotlin.Imports)
	assert.Equal(t, []string{"User"}, kotlin.Classes)
	assert.Equal(t, []string{"greet"}, kotlin.Functions)

	c := parse(t, s, "src/main.c", `#include <stdio.h>
#include "point.h"

struct point {
    int x;
};

int main(int argc, char **argv) {
    if (argc > 1) {
        return 1;
    }
    return 0;
}
`)
	assert.Equal(t, "c", c.Type)
	assert.Equal(t, []string{"stdio.h", "point.h"}, c.Imports)
	assert.Equal(t, []string{"point"}, c.Classes)
	assert.Equal(t, []string{"main"}, c.Functions)
}

func TestParseSQLAndHTML(t *testing.T) {
	s := newScanner(t)

	sql := parse(t, s, "db/schema.sql", `CREATE TABLE IF NOT EXISTS users (id integer);
create or replace view "public.active_users" as select * from users;
CREATE FUNCTION touch_updated() RETURNS trigger AS $$ BEGIN RETURN NEW; END $$;
SELECT * FROM users;
`)
	assert.Equal(t, "sql", sql.Type)
	assert.Empty(t, sql.Imports)
	assert.Equal(t, []string{"users", "public.active_users"}, sql.Classes)
	assert.Equal(t, []string{"touch_updated"}, sql.Functions)
	assert.Empty(t, sql.Error)

	html := parse(t, s, "web/index.html", "<html><body><script src=\"app.js\"></script></body></html>\n")
	assert.Equal(t, "html", html.Type)
	assert.Empty(t, html.Imports)
	assert.Empty(t, html.Classes)
	assert.Empty(t, html.Functions)
	assert.Empty(t, html.Error)
}

func TestParseNonCode(t *testing.T) {
	s := newScanner(t)
	fact := parse(t, s, "README.md", "# Title\n")
	assert.Equal(t, facts.TypeNonCode, fact.Type)
	assert.Empty(t, fact.Imports)
	assert.Equal(t, "# Title\n", fact.Content)
}

func TestParseTable(t *testing.T) {
	s := newScanner(t)
	files := []source.File{
		{Path: "a.py", Content: []byte("import b\n")},
		{Path: "b.py", Content: []byte("def f():\n    pass\n")},
		{Path: "notes.txt", Content: []byte("hello")},
	}
	table, err := s.Parse(context.Background(), files)
	require.NoError(t, err)
	require.Len(t, table, 3)
	assert.Equal(t, "a.py", table["a.py"].Path)
	assert.Equal(t, []string{"b"}, table["a.py"].Imports)
	assert.Equal(t, []string{"f"}, table["b.py"].Functions)
	assert.Equal(t, facts.TypeNonCode, table["notes.txt"].Type)
}

func TestParseCancelled(t *testing.T) {
	s := newScanner(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Parse(ctx, []source.File{{Path: "a.py", Content: []byte("import b\n")}})
	assert.ErrorIs(t, err, context.Canceled)
}
