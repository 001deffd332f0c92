package tools

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_InstallAndLookup(t *testing.T) {
	t.Parallel()

	r := New(nil)
	r.Install(Descriptor{ToolName: "search_web", ServerName: "search", Description: "searches the web"})

	d, ok := r.Lookup("search_web")
	require.True(t, ok)
	require.Equal(t, "search", d.ServerName)
}

func TestRegistry_Install_FirstRegisteredWins(t *testing.T) {
	t.Parallel()

	r := New(nil)
	r.Install(Descriptor{ToolName: "search_web", ServerName: "search-a"})
	r.Install(Descriptor{ToolName: "search_web", ServerName: "search-b"})

	d, ok := r.Lookup("search_web")
	require.True(t, ok)
	require.Equal(t, "search-a", d.ServerName)
}

func TestRegistry_Uninstall_RemovesOnlyThatServer(t *testing.T) {
	t.Parallel()

	r := New(nil)
	r.Install(Descriptor{ToolName: "search_web", ServerName: "search"})
	r.Install(Descriptor{ToolName: "calc_sum", ServerName: "calc"})

	r.Uninstall("search")

	_, ok := r.Lookup("search_web")
	require.False(t, ok)
	_, ok = r.Lookup("calc_sum")
	require.True(t, ok)
}

func TestRegistry_ListAll_SortedByName(t *testing.T) {
	t.Parallel()

	r := New(nil)
	r.Install(Descriptor{ToolName: "zeta_tool", ServerName: "s1"})
	r.Install(Descriptor{ToolName: "alpha_tool", ServerName: "s1"})

	all := r.ListAll()
	require.Len(t, all, 2)
	require.Equal(t, "alpha_tool", all[0].ToolName)
	require.Equal(t, "zeta_tool", all[1].ToolName)
}
