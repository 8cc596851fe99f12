/*
Copyright (c) 2019-2021 Andreas T Jonsson

This software is provided 'as-is', without any express or implied
warranty. In no event will the authors be held liable for any damages
arising from the use of this software.

Permission is granted to anyone to use this software for any purpose,
including commercial applications, and to alter it and redistribute it
freely, subject to the following restrictions:

1. The origin of this software must not be misrepresented; you must not
   claim that you wrote the original software. If you use this software
   in a product, an acknowledgment in the product documentation would be
   appreciated but is not required.
2. Altered source versions must be plainly marked as such, and must not be
   misrepresented as being the original software.
3. This notice may not be removed or altered from any source distribution.
*/

// Command version writes version/current.go from the I186_VERSION
// environment variable and the current git revision.
package main

import (
	"bytes"
	"fmt"
	"go/format"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/alecthomas/kong"
	"github.com/andreas-jonsson/i186-core/version"
)

const (
	startYear    = 2019
	copyrightFmt = "Copyright (c) %v Andreas T Jonsson"
)

var cli struct {
	File    string `default:"-" help:"Save the generated output to file."`
	Package string `default:"version" help:"Package name of the generated output."`
	Version string `default:"0.1.0" env:"I186_VERSION" help:"Version number as major.minor.patch[.build]."`
}

func main() {
	log.SetFlags(0)
	kong.Parse(&cli)

	v, err := version.Parse(cli.Version)
	if err != nil {
		log.Fatal(err)
	}

	hash, err := exec.Command("git", "rev-parse", "HEAD").Output()
	if err != nil {
		log.Print("could not parse Git hash: ", err)
	}

	copyright := fmt.Sprintf(copyrightFmt, startYear)
	if year := time.Now().Year(); year != startYear {
		copyright = fmt.Sprintf(copyrightFmt, fmt.Sprintf("%d-%d", startYear, year))
	}

	var buf bytes.Buffer
	err = template.Must(template.New("version").Parse(content)).Execute(&buf, map[string]interface{}{
		"pkg":  cli.Package,
		"ver":  v,
		"copy": copyright,
		"hash": strings.TrimSpace(string(hash)),
	})
	if err != nil {
		log.Fatal(err)
	}

	src, err := format.Source(buf.Bytes())
	if err != nil {
		log.Fatal(err)
	}

	if cli.File == "-" {
		os.Stdout.Write(src)
		return
	}
	if err := os.MkdirAll(filepath.Dir(cli.File), 0777); err != nil {
		log.Fatal(err)
	}
	if err := os.WriteFile(cli.File, src, 0644); err != nil {
		log.Fatal(err)
	}
}

var content = `/*
{{.copy}}

This software is provided 'as-is', without any express or implied
warranty. In no event will the authors be held liable for any damages
arising from the use of this software.

Permission is granted to anyone to use this software for any purpose,
including commercial applications, and to alter it and redistribute it
freely, subject to the following restrictions:

1. The origin of this software must not be misrepresented; you must not
   claim that you wrote the original software. If you use this software
   in a product, an acknowledgment in the product documentation would be
   appreciated but is not required.
2. Altered source versions must be plainly marked as such, and must not be
   misrepresented as being the original software.
3. This notice may not be removed or altered from any source distribution.
*/

package {{.pkg}}

var (
	Current = Version{ {{.ver.Major}}, {{.ver.Minor}}, {{.ver.Patch}}, "{{.ver.Build}}" }
	Copyright = "{{.copy}}"
	Hash = "{{.hash}}"
)
`
