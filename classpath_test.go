package stallone

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtendClassPath(t *testing.T) {
	const jar = "/opt/stallone/stallone.jar"

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "no class path",
			args: []string{"-Xmx1g"},
			want: []string{"-Xmx1g", "-Djava.class.path=" + jar},
		},
		{
			name: "nil args",
			args: nil,
			want: []string{"-Djava.class.path=" + jar},
		},
		{
			name: "property",
			args: []string{"-Djava.class.path=/a.jar:/b.jar", "-Xss4m"},
			want: []string{"-Djava.class.path=/a.jar:/b.jar:" + jar, "-Xss4m"},
		},
		{
			name: "property with prefix and tail",
			args: []string{"-ea -Djava.class.path=/a.jar -Dfoo=bar"},
			want: []string{"-ea -Djava.class.path=/a.jar:" + jar + " -Dfoo=bar"},
		},
		{
			name: "empty property",
			args: []string{"-Djava.class.path="},
			want: []string{"-Djava.class.path=:" + jar},
		},
		{
			name: "only the first property",
			args: []string{"-Djava.class.path=/a.jar", "-Djava.class.path=/b.jar"},
			want: []string{"-Djava.class.path=/a.jar:" + jar, "-Djava.class.path=/b.jar"},
		},
		{
			name: "cp flag",
			args: []string{"-cp", "/a.jar", "-Xmx1g"},
			want: []string{"-cp", "/a.jar:" + jar, "-Xmx1g"},
		},
		{
			name: "classpath flag with empty value",
			args: []string{"-classpath", ""},
			want: []string{"-classpath", jar},
		},
		{
			name: "dangling cp flag",
			args: []string{"-cp"},
			want: []string{"-cp", "-Djava.class.path=" + jar},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var orig []string
			if tt.args != nil {
				orig = append([]string{}, tt.args...)
			}
			got := ExtendClassPath(tt.args, jar, ":")
			assert.Equal(t, tt.want, got)
			if tt.args != nil {
				assert.Equal(t, orig, tt.args, "input must not be modified")
			}
		})
	}
}

func TestPathListSeparator(t *testing.T) {
	assert.Equal(t, ";", pathListSeparator("windows"))
	assert.Equal(t, ":", pathListSeparator("linux"))
	assert.Equal(t, ":", pathListSeparator("darwin"))

	got := ExtendClassPath([]string{`-Djava.class.path=C:\a.jar`}, `C:\s.jar`, ";")
	assert.Equal(t, []string{`-Djava.class.path=C:\a.jar;C:\s.jar`}, got)
}

func TestFindArchive(t *testing.T) {
	dir := t.TempDir()

	_, err := FindArchive(dir, "")
	require.ErrorIs(t, err, ErrMissingArchive)
	assert.Contains(t, err.Error(), filepath.Join(dir, DefaultArchiveName))

	path := filepath.Join(dir, DefaultArchiveName)
	require.NoError(t, os.WriteFile(path, []byte("PK"), 0o644))

	got, err := FindArchive(dir, "")
	require.NoError(t, err)
	assert.Equal(t, path, got)
	assert.True(t, filepath.IsAbs(got))

	require.NoError(t, os.Mkdir(filepath.Join(dir, "lib.jar"), 0o755))
	_, err = FindArchive(dir, "lib.jar")
	assert.ErrorIs(t, err, ErrMissingArchive)

	custom := filepath.Join(dir, "custom.jar")
	require.NoError(t, os.WriteFile(custom, []byte("PK"), 0o644))
	got, err = FindArchive(dir, "custom.jar")
	require.NoError(t, err)
	assert.Equal(t, custom, got)
}

func TestInstallDir(t *testing.T) {
	dir := InstallDir()
	assert.NotEmpty(t, dir)
	fi, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, fi.IsDir())
}
