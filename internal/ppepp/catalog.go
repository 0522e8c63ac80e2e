// Package ppepp holds the section catalog and the completion rules for the
// PPEPP self-evaluation document. Validation, uploads, progress and
// statistics all consume this one catalog.
package ppepp

type Stage string

const (
	StagePenetapan    Stage = "PENETAPAN"
	StagePelaksanaan  Stage = "PELAKSANAAN"
	StageEvaluasi     Stage = "EVALUASI"
	StagePengendalian Stage = "PENGENDALIAN"
	StagePeningkatan  Stage = "PENINGKATAN"
)

var Stages = []Stage{
	StagePenetapan,
	StagePelaksanaan,
	StageEvaluasi,
	StagePengendalian,
	StagePeningkatan,
}

// SectionCodes lists every section of the document in reading order.
var SectionCodes = []string{
	"A",
	"B1", "B2", "B3", "B4", "B5", "B6", "B7", "B8",
	"C1", "C2", "C3", "C4", "C5", "C6", "C7", "C8", "C9",
	"D1", "D2", "D3", "D4",
}

var sectionNames = map[string]string{
	"A":  "Kondisi Eksternal",
	"B1": "Sejarah Unit Pengelola Program Studi",
	"B2": "Visi, Misi, Tujuan, Strategi, dan Tata Nilai",
	"B3": "Organisasi dan Tata Kerja",
	"B4": "Mahasiswa dan Lulusan",
	"B5": "Dosen dan Tenaga Kependidikan",
	"B6": "Keuangan, Sarana, dan Prasarana",
	"B7": "Sistem Penjaminan Mutu",
	"B8": "Kinerja Unit Pengelola Program Studi",
	"C1": "Visi, Misi, Tujuan dan Strategi",
	"C2": "Tata Kelola, Tata Pamong, dan Kerjasama",
	"C3": "Mahasiswa",
	"C4": "Sumber Daya Manusia",
	"C5": "Keuangan, Sarana, dan Prasarana",
	"C6": "Pendidikan",
	"C7": "Penelitian",
	"C8": "Pengabdian Kepada Masyarakat",
	"C9": "Kerjasama",
	"D1": "Analisis Capaian Kinerja",
	"D2": "Analisis SWOT atau Analisis Lain yang Relevan",
	"D3": "Strategi Pengembangan",
	"D4": "Program Keberlanjutan",
}

// requiredDocuments maps each criterion section to the number of evidence
// documents each stage needs, in stage order.
var requiredDocuments = map[string][5]int{
	"C1": {3, 3, 1, 1, 1},
	"C2": {4, 3, 1, 1, 1},
	"C3": {3, 3, 1, 1, 1},
	"C4": {4, 4, 1, 1, 1},
	"C5": {2, 2, 1, 1, 1},
	"C6": {6, 6, 1, 1, 1},
	"C7": {4, 4, 1, 1, 1},
	"C8": {4, 4, 1, 1, 1},
	"C9": {7, 7, 1, 1, 1},
}

func ValidCode(code string) bool {
	_, ok := sectionNames[code]
	return ok
}

func ValidStage(stage string) bool {
	for _, s := range Stages {
		if Stage(stage) == s {
			return true
		}
	}
	return false
}

// SectionName returns the display name for a code, or "" for unknown codes.
func SectionName(code string) string {
	return sectionNames[code]
}

// IsCriterion reports whether a section is one of the C-series criteria,
// which are evaluated per stage rather than as a single text body.
func IsCriterion(code string) bool {
	_, ok := requiredDocuments[code]
	return ok
}

// RequiredDocuments returns how many uploaded documents the given
// (criterion, stage) pair needs, or 0 for non-criterion sections.
func RequiredDocuments(code string, stage Stage) int {
	counts, ok := requiredDocuments[code]
	if !ok {
		return 0
	}
	for i, s := range Stages {
		if s == stage {
			return counts[i]
		}
	}
	return 0
}
