package scanner

import (
	"bufio"
	"bytes"
	"regexp"

	"repograph/internal/facts"
)

// lineExtractor pulls facts out of languages without a bundled grammar,
// one line at a time. A nil pattern matches nothing.
type lineExtractor struct {
	name      string
	imports   *regexp.Regexp
	classes   *regexp.Regexp
	functions *regexp.Regexp
	// keywords are function-pattern hits that are control flow, not names.
	keywords map[string]bool
}

var (
	jvmImport  = regexp.MustCompile(`^\s*import\s+(?:static\s+)?([\w.]+(?:\.\*)?)(?:\s+as\s+\w+)?\s*;?\s*$`)
	jvmClasses = regexp.MustCompile(`^\s*(?:(?:public|private|protected|internal|abstract|final|sealed|open|data|static|case)\s+)*(?:class|interface|enum|record|object|trait)\s+(\w+)`)

	javaMethod = regexp.MustCompile(`^\s*(?:(?:public|protected|private|static|final|abstract|synchronized|native|default)\s+)+[\w<>\[\]?,.\s]*?\s(\w+)\s*\(`)
	kotlinFun  = regexp.MustCompile(`^\s*(?:(?:public|private|protected|internal|override|suspend|inline|open|abstract|operator|infix)\s+)*fun\s+(?:<[^>]*>\s*)?(?:[\w.]+\.)?(\w+)\s*\(`)
	scalaDef   = regexp.MustCompile(`^\s*(?:(?:override|private|protected|final|implicit)\s+)*def\s+(\w+)`)

	cInclude  = regexp.MustCompile(`^\s*#\s*include\s*[<"]([^>"]+)[>"]`)
	cClasses  = regexp.MustCompile(`^\s*(?:template\s*<[^>]*>\s*)?(?:class|struct)\s+(\w+)\s*(?:final\s*)?(?:[:{]|$)`)
	cFunction = regexp.MustCompile(`^(?:[A-Za-z_][\w<>:,*&]*[ \t*&]+)+(?:\w+::)*(~?\w+)\s*\([^;]*$`)

	// Tables and views are the classes of a schema, routines its functions.
	sqlRelation = regexp.MustCompile(`(?i)^\s*create\s+(?:or\s+replace\s+)?(?:temp(?:orary)?\s+)?(?:table|view|materialized\s+view)\s+(?:if\s+not\s+exists\s+)?["` + "`" + `]?([\w.]+)`)
	sqlRoutine  = regexp.MustCompile(`(?i)^\s*create\s+(?:or\s+replace\s+)?(?:function|procedure)\s+(?:if\s+not\s+exists\s+)?["` + "`" + `]?([\w.]+)`)
)

var cKeywords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "return": true,
	"sizeof": true, "else": true, "do": true, "case": true,
}

var javaKeywords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "catch": true,
	"return": true, "new": true, "synchronized": true,
}

var lineExtractors = map[string]*lineExtractor{}

func init() {
	java := &lineExtractor{name: "java", imports: jvmImport, classes: jvmClasses, functions: javaMethod, keywords: javaKeywords}
	kotlin := &lineExtractor{name: "kotlin", imports: jvmImport, classes: jvmClasses, functions: kotlinFun}
	scala := &lineExtractor{name: "scala", imports: jvmImport, classes: jvmClasses, functions: scalaDef}
	c := &lineExtractor{name: "c", imports: cInclude, classes: cClasses, functions: cFunction, keywords: cKeywords}
	cpp := &lineExtractor{name: "cpp", imports: cInclude, classes: cClasses, functions: cFunction, keywords: cKeywords}
	sql := &lineExtractor{name: "sql", classes: sqlRelation, functions: sqlRoutine}
	html := &lineExtractor{name: "html"}

	register := func(ex *lineExtractor, exts ...string) {
		for _, ext := range exts {
			lineExtractors[ext] = ex
		}
	}
	register(java, ".java")
	register(kotlin, ".kt", ".kts")
	register(scala, ".scala")
	register(c, ".c", ".h")
	register(cpp, ".cc", ".cpp", ".cxx", ".hh", ".hpp", ".hxx")
	register(sql, ".sql")
	register(html, ".html", ".htm")
}

func (ex *lineExtractor) extract(content []byte, fact *facts.FileFact) {
	if ex.imports == nil && ex.classes == nil && ex.functions == nil {
		return
	}
	sc := bufio.NewScanner(bytes.NewReader(content))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if m := match(ex.imports, line); m != nil {
			fact.Imports = appendImport(fact.Imports, m[1])
			continue
		}
		if m := match(ex.classes, line); m != nil {
			fact.Classes = appendUnique(fact.Classes, m[1])
			continue
		}
		if m := match(ex.functions, line); m != nil && !ex.keywords[m[1]] {
			fact.Functions = appendUnique(fact.Functions, m[1])
		}
	}
}

func match(re *regexp.Regexp, line string) []string {
	if re == nil {
		return nil
	}
	return re.FindStringSubmatch(line)
}
