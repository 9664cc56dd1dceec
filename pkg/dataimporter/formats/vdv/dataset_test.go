package vdv

import (
	"testing"
)

// writeMinimalDataset writes a complete dataset with one line, one variant
// of two stops 800 m apart, a 120 s timing field, zero dwell, one scheduled
// trip starting at midnight and one operating date.
func writeMinimalDataset(t *testing.T, dir string) {
	t.Helper()

	writeTableFile(t, dir, "basis_ver_gueltigkeit.x10",
		"tbl; BASIS_VER_GUELTIGKEIT",
		"chs; ASCII",
		"atr; VER_GUELTIGKEIT; BASIS_VERSION",
		"frm; num[8.0]; num[9.0]",
		"rec; 20200101; 1",
		"eof; 1",
	)

	writeTableFile(t, dir, "firmenkalender.x10",
		"tbl; FIRMENKALENDER",
		"chs; ASCII",
		"atr; BASIS_VERSION; BETRIEBSTAG; TAGESART_NR",
		"frm; num[9.0]; num[8.0]; num[2.0]",
		"rec; 1; 20250601; 1",
		"eof; 1",
	)

	writeTableFile(t, dir, "rec_ort.x10",
		"tbl; REC_ORT",
		"chs; ASCII",
		"atr; BASIS_VERSION; ONR_TYP_NR; ORT_NR; ORT_NAME; ORT_KUERZEL; ORT_POS_BREITE; ORT_POS_LAENGE",
		"frm; num[9.0]; num[2.0]; num[7.0]; char[40]; char[8]; num[3.6]; num[3.6]",
		`rec; 1; 1; 1; "Alpha"; ALP; 52.52; 13.41`,
		`rec; 1; 1; 2; "Beta"; BET; 52.53; 13.42`,
		"eof; 1",
	)

	writeTableFile(t, dir, "menge_fzg_typ.x10",
		"tbl; MENGE_FZG_TYP",
		"chs; ASCII",
		"atr; BASIS_VERSION; FZG_TYP_NR; FZG_TYP_TEXT; STR_FZG_TYP; FZG_LAENGE; VERBRAUCH_DIST_ANZ",
		"frm; num[9.0]; num[3.0]; char[40]; char[8]; num[3.1]; num[6.0]",
		`rec; 1; 7; "Standard bus"; SB; 12.0; 1500`,
		"eof; 1",
	)

	writeTableFile(t, dir, "rec_sel.x10",
		"tbl; REC_SEL",
		"chs; ASCII",
		"atr; BASIS_VERSION; BEREICH_NR; ONR_TYP_NR; ORT_NR; SEL_ZIEL_TYP; SEL_ZIEL; SEL_LAENGE",
		"frm; num[9.0]; num[3.0]; num[2.0]; num[7.0]; num[2.0]; num[7.0]; num[6.0]",
		"rec; 1; 1; 1; 1; 1; 2; 800",
		"eof; 1",
	)

	writeTableFile(t, dir, "sel_fzt_feld.x10",
		"tbl; SEL_FZT_FELD",
		"chs; ASCII",
		"atr; BASIS_VERSION; BEREICH_NR; FGR_NR; ONR_TYP_NR; ORT_NR; SEL_ZIEL_TYP; SEL_ZIEL; SEL_FZT",
		"frm; num[9.0]; num[3.0]; num[3.0]; num[2.0]; num[7.0]; num[2.0]; num[7.0]; num[5.0]",
		"rec; 1; 1; 1; 1; 1; 1; 2; 120",
		"eof; 1",
	)

	writeTableFile(t, dir, "ort_hztf.x10",
		"tbl; ORT_HZTF",
		"chs; ASCII",
		"atr; BASIS_VERSION; FGR_NR; ONR_TYP_NR; ORT_NR; HP_HZT",
		"frm; num[9.0]; num[3.0]; num[2.0]; num[7.0]; num[5.0]",
		"rec; 1; 1; 1; 1; 0",
		"rec; 1; 1; 1; 2; 0",
		"eof; 1",
	)

	writeTableFile(t, dir, "lid_verlauf.x10",
		"tbl; LID_VERLAUF",
		"chs; ASCII",
		"atr; BASIS_VERSION; LI_LFD_NR; LI_NR; STR_LI_VAR; ONR_TYP_NR; ORT_NR",
		"frm; num[9.0]; num[3.0]; num[5.0]; char[6]; num[2.0]; num[7.0]",
		"rec; 1; 1; 10; A; 1; 1",
		"rec; 1; 2; 10; A; 1; 2",
		"eof; 1",
	)

	writeTableFile(t, dir, "rec_lid.x10",
		"tbl; REC_LID",
		"chs; ASCII",
		"atr; BASIS_VERSION; BEREICH_NR; LI_NR; STR_LI_VAR; LI_KUERZEL; LIDNAME",
		"frm; num[9.0]; num[3.0]; num[5.0]; char[6]; char[6]; char[40]",
		`rec; 1; 1; 10; A; M10; "Alpha - Beta"`,
		"eof; 1",
	)

	writeTableFile(t, dir, "rec_frt.x10",
		"tbl; REC_FRT",
		"chs; ASCII",
		"atr; BASIS_VERSION; FRT_FID; FRT_START; LI_NR; TAGESART_NR; FGR_NR; STR_LI_VAR; UM_UID",
		"frm; num[9.0]; num[8.0]; num[6.0]; num[5.0]; num[2.0]; num[3.0]; char[6]; num[8.0]",
		"rec; 1; 100; 0; 10; 1; 1; A; 55",
		"eof; 1",
	)

	writeTableFile(t, dir, "rec_umlauf.x10",
		"tbl; REC_UMLAUF",
		"chs; ASCII",
		"atr; BASIS_VERSION; TAGESART_NR; UM_UID; ANF_ONR_TYP; ANF_ORT; END_ONR_TYP; END_ORT; FZG_TYP_NR",
		"frm; num[9.0]; num[2.0]; num[8.0]; num[2.0]; num[7.0]; num[2.0]; num[7.0]; num[3.0]",
		"rec; 1; 1; 55; 1; 1; 1; 2; 7",
		"eof; 1",
	)
}
